package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/async"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/export"
	"github.com/manekies/document-converter-app/internal/imaging"
	"github.com/manekies/document-converter-app/internal/ingest"
	"github.com/manekies/document-converter-app/internal/pipeline"
	"github.com/manekies/document-converter-app/internal/server"
)

type requestFlags struct {
	mode          string
	quality       string
	languages     []string
	regions       []string
	skipTemplates bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "auto", "recognition routing: auto|local|cloud")
	cmd.Flags().StringVar(&f.quality, "quality", "fast", "fast, or best to run the refinement cascade")
	cmd.Flags().StringSliceVar(&f.languages, "lang", nil, "language hints, e.g. --lang deu,eng")
	cmd.Flags().StringArrayVar(&f.regions, "region", nil, "region of interest name=x,y,w,h (repeatable)")
	cmd.Flags().BoolVar(&f.skipTemplates, "skip-templates", false, "do not look up a matching template")
}

func (f *requestFlags) request() (pipeline.Request, error) {
	regions, err := parseRegions(f.regions)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Mode:          constants.ParseMode(f.mode),
		Quality:       constants.ParseQuality(f.quality),
		Languages:     f.languages,
		Regions:       regions,
		SkipTemplates: f.skipTemplates,
	}, nil
}

func newProcessCmd(a *app) *cobra.Command {
	var (
		flags  requestFlags
		out    string
		xlsx   string
		remote string
	)
	cmd := &cobra.Command{
		Use:   "process <image>",
		Short: "Convert one page image and print the structured result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			if remote != "" {
				return processRemote(cmd.Context(), cmd.OutOrStdout(), remote, args[0], req)
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.Service.ProcessFile(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			data, err := export.ResultJSON(resp.Result)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), out, data); err != nil {
				return err
			}
			if xlsx != "" {
				book, err := export.TablesToXLSX(resp.Structure)
				if err != nil {
					return err
				}
				return os.WriteFile(xlsx, book, 0o644)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write detected tables to this XLSX file")
	cmd.Flags().StringVar(&remote, "remote", "", "send the page to a docconvd at host:port instead of processing locally")
	return cmd
}

func processRemote(ctx context.Context, w io.Writer, addr, path string, req pipeline.Request) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	var reply server.ProcessReply
	err = server.NewClient(conn).CallJSON(ctx, "Process", server.ProcessRequest{
		Source:        filepath.Base(path),
		Image:         image,
		MIMEType:      constants.MIMETypeForPath(path),
		Mode:          string(req.Mode),
		Quality:       string(req.Quality),
		Languages:     req.Languages,
		Regions:       req.Regions,
		SkipTemplates: req.SkipTemplates,
	}, &reply, grpc.MaxCallSendMsgSize(64<<20))
	if err != nil {
		return err
	}
	return printJSON(w, reply)
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		flags   requestFlags
		outDir  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "batch <dir|image>...",
		Short: "Convert every page image under the given directories and files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			paths, err := collectPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no page images found")
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}
			if workers <= 0 {
				workers = a.cfg.Batch.Workers
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			results := async.Batch(cmd.Context(), rt.Service, paths, req, a.logger,
				async.WithWorkers(workers),
				async.WithProcessTimeout(a.cfg.Batch.ProcessTimeout),
			)
			failed := 0
			for _, r := range results {
				line := fmt.Sprintf("%-10s %s", r.Status, r.Path)
				switch {
				case r.Err != nil:
					failed++
					line += "  " + r.Err.Error()
				case outDir != "":
					base := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path)))
					if err := export.WriteResult(base, r.Response.Result); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d pages failed", failed, len(results))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for per-page JSON and XLSX output")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (default BATCH_WORKERS)")
	return cmd
}

// collectPaths expands directories into the page images they contain.
func collectPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			out = append(out, arg)
			continue
		}
		paths, _, err := ingest.ScanDirectory(arg, true)
		if err != nil {
			return nil, err
		}
		out = append(out, paths...)
	}
	return out, nil
}

func newFingerprintCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <image>",
		Short: "Print the perceptual fingerprint used to register a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fp, err := imaging.FingerprintBytes(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
}

func newMatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "match <image>",
		Short: "Show the stored template an image matches, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			t := rt.Matcher.FindMatchingTemplate(cmd.Context(), data)
			if t == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching template")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
}

// parseRegions parses name=x,y,w,h specs.
func parseRegions(specs []string) ([]document.Region, error) {
	out := make([]document.Region, 0, len(specs))
	for _, spec := range specs {
		name, geom, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("region %q: want name=x,y,w,h", spec)
		}
		var r document.Region
		if _, err := fmt.Sscanf(strings.ReplaceAll(geom, " ", ""), "%d,%d,%d,%d", &r.X, &r.Y, &r.Width, &r.Height); err != nil {
			return nil, fmt.Errorf("region %q: %w", spec, err)
		}
		if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
			return nil, fmt.Errorf("region %q: x,y must be >= 0 and w,h > 0", spec)
		}
		r.Name = name
		out = append(out, r)
	}
	return out, nil
}
