// Command nutrilens runs the HTTP server (nutrilens serve) and analyzes food
// photos from the terminal using the same pipeline.
//
// @title NutriLens API
// @version 1.0
// @description Food photo nutrition analysis: food gate, vision model identification and USDA lookup.
// @host localhost:8000
// @BasePath /api
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nutrilens-server-go/internal/bootstrap"
	"nutrilens-server-go/internal/domain/auth"
	domainimage "nutrilens-server-go/internal/domain/image"
	"nutrilens-server-go/internal/domain/parser"
	platformconfig "nutrilens-server-go/internal/platform/config"
	platformobservability "nutrilens-server-go/internal/platform/observability"
	httptransport "nutrilens-server-go/internal/transport/http"
	mcptransport "nutrilens-server-go/internal/transport/mcp"
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nutrilens",
		Short:         "Food photo nutrition analysis",
		Version:       bootstrap.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newAnalyzeCommand(&configPath))
	root.AddCommand(newParseCommand())
	root.AddCommand(newTokenCommand(&configPath))
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Run(cmd.Context(), bootstrap.Options{ConfigPath: *configPath})
		},
	}
}

func newAnalyzeCommand(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze one image file and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return cliError{code: 2, err: err}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app, err := bootstrap.Build(ctx, bootstrap.Options{ConfigPath: *configPath})
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			ctx = platformobservability.WithRequestID(ctx, uuid.NewString())
			blob, err := app.Images.Process(ctx, domainimage.Input{
				Reader:    bytes.NewReader(data),
				MediaType: http.DetectContentType(data),
				Source:    filepath.Base(args[0]),
			})
			if err != nil {
				return cliError{code: 3, err: errors.New(httptransport.Classify(err).Detail)}
			}
			result, err := app.Coordinator.Analyze(ctx, blob)
			if err != nil {
				return cliError{code: 3, err: errors.New(httptransport.Classify(err).Detail)}
			}
			return printJSON(cmd.OutOrStdout(), result.Envelope())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for startup and analysis")
	return cmd
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Parse a vision model reply read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mcptransport.ParsedReply(parser.Parse(string(text))))
		},
	}
}

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		subject string
		secret  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the secured endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" {
				return cliError{code: 2, err: errors.New("--subject is required")}
			}
			if secret == "" {
				res, err := platformconfig.NewLoader().WithPath(*configPath).Load()
				if err != nil {
					return err
				}
				secret = res.Config.Server.Auth.Secret
				if ttl <= 0 {
					ttl = res.Config.Server.Auth.TTL
				}
			}

			issuer := auth.NewAuthToken(secret)
			if ttl > 0 {
				issuer = issuer.WithTTL(ttl)
			}
			token, err := issuer.GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to server.auth.secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to server.auth.ttl)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
