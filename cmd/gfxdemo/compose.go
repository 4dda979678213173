package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/shaderchunk"
)

type composeFlags struct {
	name     string
	tokens   map[string]string
	validate bool
	list     bool
	watch    bool
}

func newComposeCmd(opts *options) *cobra.Command {
	f := &composeFlags{}
	cmd := &cobra.Command{
		Use:   "compose CHUNK...",
		Short: "Compose a shader program from chunks",
		Long: `Concatenate the named chunks, substitute $TOKEN placeholders and
print the result. Chunks come from the built-in set overlaid with
[shaders] dir. With --watch the program is recomposed whenever a chunk
file changes.`,
		Example: `  gfxdemo compose shadow.uniforms shadow.vs shadow.moments.fs -t DEPTH=in.position.z
  gfxdemo compose --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd, opts, f, args)
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "gfxdemo", "program name")
	cmd.Flags().StringToStringVarP(&f.tokens, "token", "t", nil, "token value as NAME=VALUE (repeatable)")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "compile the result with naga")
	cmd.Flags().BoolVar(&f.list, "list", false, "list chunk names and exit")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "recompose on chunk file changes (overrides [shaders] watch)")
	return cmd
}

func runCompose(cmd *cobra.Command, opts *options, f *composeFlags, args []string) error {
	r, err := loadChunks(opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if f.list {
		for _, name := range r.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("compose needs at least one chunk name")
	}

	p := shaderchunk.Program{Name: f.name, Chunks: args, Tokens: f.tokens}
	if err := composeTo(out, r, p, f.validate); err != nil {
		return err
	}

	watch := opts.cfg.Shaders.Watch
	if cmd.Flags().Changed("watch") {
		watch = f.watch
	}
	if !watch {
		return nil
	}
	dir := opts.cfg.Shaders.Dir
	if dir == "" {
		return fmt.Errorf("--watch needs [shaders] dir")
	}

	log := gfx.Logger()
	w, err := shaderchunk.Watch(r, dir, func(name string) {
		log.Info("chunk changed", "chunk", name)
		if err := composeTo(out, r, p, f.validate); err != nil {
			log.Error("compose failed", "program", p.Name, "err", err)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log.Info("watching chunks, press Ctrl+C to stop", "dir", dir)
	<-ctx.Done()
	return nil
}

func composeTo(out io.Writer, r *shaderchunk.Registry, p shaderchunk.Program, validate bool) error {
	compose := r.Compose
	if validate {
		compose = r.ComposeValidated
	}
	src, err := compose(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, src)
	return err
}
