// Command modelcrypt obfuscates and inspects model files for the detector.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "modelcrypt",
	Short: "Obfuscate, de-obfuscate and inspect model files",
	Long: `modelcrypt applies the single-byte XOR obfuscation used for model
header (.param) and weights (.bin) files.

Examples:
  modelcrypt encode --key 0x5A yolo11n.param yolo11n.param.enc
  modelcrypt decode --key 90 yolo11n.param.enc yolo11n.param
  modelcrypt inspect --key 0x5A yolo11n.param.enc`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// newLogger returns a development logger when verbose and a no-op otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return l, nil
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")
	rootCmd.AddCommand(newEncodeCmd("encode", "Obfuscate a plaintext file"))
	rootCmd.AddCommand(newEncodeCmd("decode", "Recover the plaintext of an obfuscated file"))
	rootCmd.AddCommand(newInspectCmd())
}

func main() {
	defer func() { _ = logger.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
