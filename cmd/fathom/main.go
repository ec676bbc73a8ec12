// Package main provides the Fathom inference runtime CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fathom-ml/fathom/model"
	"github.com/fathom-ml/fathom/runtime"
	"github.com/fathom-ml/fathom/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fathom",
		Short:         "Fathom - model inference runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.fathom.yaml)")

	loadEnv := func() (*runtime.Env, *cliConfig, error) {
		explicit := configPath != ""
		path := configPath
		if path == "" {
			path = defaultConfigPath()
		}
		cfg, err := loadConfig(path, explicit)
		if err != nil {
			return nil, nil, err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.slogLevel()}))
		env := runtime.NewEnv(
			runtime.WithLogger(logger),
			runtime.WithProfileDir(cfg.ProfileDir),
		)
		return env, cfg, nil
	}

	root.AddCommand(newInfoCommand())
	root.AddCommand(newCheckCommand())
	root.AddCommand(newRunCommand(loadEnv))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fathom %s\n", version)
		},
	})
	return root
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info MODEL",
		Short: "Describe a model's identity, metadata and features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.Open(args[0])
			if err != nil {
				return err
			}
			s, err := model.Summarize(d)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", s.Name)
			fmt.Fprintf(out, "Domain:      %s\n", s.Domain)
			fmt.Fprintf(out, "Version:     %d\n", s.Version)
			fmt.Fprintf(out, "Description: %s\n", s.Description)
			if len(s.Metadata) > 0 {
				fmt.Fprintln(out, "Metadata:")
				for k, v := range s.Metadata {
					fmt.Fprintf(out, "  %s: %s\n", k, v)
				}
			}
			fmt.Fprintln(out, "Inputs:")
			printFeatures(out, s.Inputs)
			fmt.Fprintln(out, "Outputs:")
			printFeatures(out, s.Outputs)
			return nil
		},
	}
}

func printFeatures(out io.Writer, fs []model.Feature) {
	for _, f := range fs {
		desc := f.Kind().String()
		if tf, ok := f.(*model.TensorFeature); ok {
			desc += " " + dimString(tf.Dims())
		}
		if f.IsFloat16() {
			desc += " (float16)"
		}
		fmt.Fprintf(out, "  %-20s %s\n", f.Name(), desc)
	}
}

func dimString(dims []model.Dim) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d.Size < 0 {
			if d.Param != "" {
				parts[i] = d.Param
			} else {
				parts[i] = "?"
			}
			continue
		}
		parts[i] = fmt.Sprintf("%d", d.Size)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func newCheckCommand() *cobra.Command {
	var float16 bool

	cmd := &cobra.Command{
		Use:   "check MODEL",
		Short: "Check that a model can run on the target device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.Open(args[0])
			if err != nil {
				return err
			}
			s, err := model.Summarize(d)
			if err != nil {
				return err
			}
			if err := model.Validate(s, d, float16); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().BoolVar(&float16, "float16", false, "device supports 16-bit floats")
	return cmd
}

func newRunCommand(loadEnv func() (*runtime.Env, *cliConfig, error)) *cobra.Command {
	var (
		transforms bool
		profile    bool
	)

	cmd := &cobra.Command{
		Use:   "run MODEL",
		Short: "Run a model once with zero-filled inputs",
		Long: "Run executes one inference pass on the generic target. Inputs are\n" +
			"zero-filled float32 tensors shaped from the model's declarations;\n" +
			"dynamic dimensions default to 1.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := loadEnv()
			if err != nil {
				return err
			}

			d, err := model.Open(args[0])
			if err != nil {
				return err
			}
			s, err := model.Summarize(d)
			if err != nil {
				return err
			}

			sess, err := runtime.NewSession(env, runtime.SelectBuilder(nil, nil))
			if err != nil {
				return err
			}
			defer sess.Close()

			if transforms {
				if err := sess.RegisterGraphTransformers(true); err != nil {
					return err
				}
			}
			if err := sess.LoadModel(d); err != nil {
				return err
			}

			binding, err := sess.NewBinding()
			if err != nil {
				return err
			}
			for _, f := range s.Inputs {
				x, err := zeroInput(f)
				if err != nil {
					return err
				}
				if err := binding.BindInput(f.Name(), x); err != nil {
					return err
				}
			}
			for _, f := range s.Outputs {
				if err := binding.BindOutput(f.Name(), nil); err != nil {
					return err
				}
			}

			if profile {
				id, err := sess.StartProfiling()
				if err != nil {
					return err
				}
				defer func() { _ = sess.EndProfiling() }()
				fmt.Fprintf(cmd.OutOrStdout(), "Profiling run %s\n", id)
			}

			if err := sess.Run(&runtime.RunOptions{Tag: "cli"}, binding); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range binding.OutputNames() {
				t := binding.Output(name)
				fmt.Fprintf(out, "%s: %s %v\n", name, t.DType(), t.Shape())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&transforms, "transforms", false, "apply default graph rewrites")
	cmd.Flags().BoolVar(&profile, "profile", false, "tag the run with a profiling id")
	return cmd
}

// zeroInput builds a zero-filled tensor for a declared input feature.
func zeroInput(f model.Feature) (*tensor.RawTensor, error) {
	tf, ok := f.(*model.TensorFeature)
	if !ok {
		if img, isImage := f.(*model.ImageFeature); isImage {
			tf = &img.TensorFeature
		} else {
			return nil, fmt.Errorf("input %q: only tensor inputs can be zero-filled", f.Name())
		}
	}

	shape := make(tensor.Shape, len(tf.Dims()))
	for i, d := range tf.Dims() {
		if d.Size < 0 {
			shape[i] = 1
			continue
		}
		shape[i] = int(d.Size)
	}
	return tensor.NewRaw(shape, tensor.Float32, tensor.Host)
}
