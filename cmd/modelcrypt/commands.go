package main

import (
	"strconv"

	"github.com/nvr-ai/go-yolo11/inference"
	"github.com/nvr-ai/go-yolo11/inference/obfuscated"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// parseKey accepts a key in decimal, 0x hex or 0 octal notation.
func parseKey(s string) (byte, error) {
	k, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid key %q, want 0-255", s)
	}
	return byte(k), nil
}

// newEncodeCmd builds encode and decode, which differ only in name since XOR
// is its own inverse.
func newEncodeCmd(use, short string) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   use + " <src> <dst>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(key)
			if err != nil {
				return err
			}

			n, err := obfuscated.EncodeFile(args[0], args[1], k)
			if err != nil {
				return err
			}

			logger.Info(use+"d model file",
				zap.String("src", args[0]),
				zap.String("dst", args[1]),
				zap.Int64("bytes", n))
			cmd.Printf("%s -> %s (%d bytes)\n", args[0], args[1], n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "0", "XOR key, decimal or 0x hex")
	return cmd
}

// newInspectCmd prints the parsed header of an obfuscated .param file as YAML.
func newInspectCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "inspect <param>",
		Short: "Print the header of an obfuscated .param file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(key)
			if err != nil {
				return err
			}

			r, err := obfuscated.Open(args[0], k, obfuscated.WithPreload(), obfuscated.WithLogger(logger))
			defer r.Close()
			if err != nil {
				return err
			}

			header, err := inference.ReadHeader(r)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(header)
			if err != nil {
				return errors.Wrap(err, "marshal header")
			}
			cmd.Print(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "0", "XOR key, decimal or 0x hex")
	return cmd
}
