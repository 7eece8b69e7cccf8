package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/BaSui01/mediaflow"
	"github.com/BaSui01/mediaflow/internal/server"
	"github.com/BaSui01/mediaflow/prompts"
	"github.com/BaSui01/mediaflow/types"
	"github.com/BaSui01/mediaflow/workflow"
)

type runFlags struct {
	prompts     []string
	source      string
	file        string
	keyword     string
	count       int
	image       string
	interactive bool

	candidates  int
	concurrency int
	selectBest  bool
	video       bool
	download    bool
	classify    bool
	downloadDir string
}

func (a *App) newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the prompt to image to video workflow",
		Long: `Run collects prompts, generates candidate images for each one, picks the
best image, turns it into a video, and optionally downloads and classifies
the results.

Prompts come from --prompt (repeatable), a file, a keyword expanded by the
text model, a reference image described by the vision model, or stdin with
--interactive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorkflow(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&f.prompts, "prompt", "p", nil, "prompt text (repeatable)")
	flags.StringVar(&f.source, "source", "", "prompt source: manual, file, generated, image")
	flags.StringVar(&f.file, "file", "", "prompt file, one prompt per line")
	flags.StringVar(&f.keyword, "keyword", "", "theme for generated prompts")
	flags.IntVar(&f.count, "count", 1, "number of generated prompts")
	flags.StringVar(&f.image, "image", "", "reference image path or URL")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "read prompts from stdin")
	flags.IntVarP(&f.candidates, "candidates", "n", 1, "candidate images per prompt")
	flags.IntVar(&f.concurrency, "concurrency", 1, "parallel image tasks per prompt")
	flags.BoolVar(&f.selectBest, "select-best", true, "score candidates and keep the best")
	flags.BoolVar(&f.video, "video", true, "generate a video from the best image")
	flags.BoolVar(&f.download, "download", false, "download the best image and the video")
	flags.BoolVar(&f.classify, "classify", false, "classify downloaded files (implies --download)")
	flags.StringVar(&f.downloadDir, "download-dir", "", "download directory")

	return cmd
}

// promptSpec 由参数推断提示词来源
func (a *App) promptSpec(f *runFlags) (prompts.Spec, error) {
	spec := prompts.Spec{
		Manual:  f.prompts,
		File:    f.file,
		Keyword: f.keyword,
		Count:   f.count,
		Image:   f.image,
	}

	if f.interactive {
		lines, err := a.readInteractive()
		if err != nil {
			return spec, err
		}
		spec.Source = prompts.SourceManual
		spec.Manual = append(spec.Manual, lines...)
		return spec, nil
	}

	if f.source != "" {
		src, err := prompts.ParseSource(f.source)
		if err != nil {
			return spec, err
		}
		spec.Source = src
		return spec, nil
	}

	switch {
	case f.file != "":
		spec.Source = prompts.SourceFile
	case f.keyword != "":
		spec.Source = prompts.SourceGenerated
	case f.image != "":
		spec.Source = prompts.SourceImage
	default:
		spec.Source = prompts.SourceManual
	}
	return spec, nil
}

// readInteractive 从标准输入逐行读取提示词. 终端下空行结束输入.
func (a *App) readInteractive() ([]string, error) {
	tty := false
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		fmt.Fprintln(a.stderr, "Enter prompts, one per line. Finish with an empty line:")
	}

	var lines []string
	scanner := bufio.NewScanner(a.stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if tty {
				break
			}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewError(types.ErrInvalidInput, "read prompts from stdin").WithCause(err)
	}
	return lines, nil
}

func (a *App) runWorkflow(cmd *cobra.Command, f *runFlags) error {
	ctx := cmd.Context()

	spec, err := a.promptSpec(f)
	if err != nil {
		return err
	}

	opts := workflow.OptionsFromConfig(a.cfg.Workflow, spec)
	flags := cmd.Flags()
	if flags.Changed("candidates") {
		opts.Candidates = f.candidates
	}
	if flags.Changed("concurrency") {
		opts.Concurrency = f.concurrency
	}
	if flags.Changed("select-best") {
		opts.SelectBest = f.selectBest
	}
	if flags.Changed("video") {
		opts.GenerateVideo = f.video
	}
	if flags.Changed("download") {
		opts.Download = f.download
	}
	if flags.Changed("classify") {
		opts.Classify = f.classify
	}

	store, err := a.tokenStore()
	if err != nil {
		return err
	}
	options := []mediaflow.Option{
		mediaflow.WithLogger(a.logger),
		mediaflow.WithMetrics(a.metrics),
		mediaflow.WithHTTPClient(a.httpClient),
	}
	if store != nil {
		options = append(options, mediaflow.WithTokenStore(store))
	}
	if f.downloadDir != "" {
		options = append(options, mediaflow.WithDownloadDir(f.downloadDir))
	}
	runner, err := mediaflow.New(a.cfg, opts, options...)
	if err != nil {
		return err
	}

	srv := server.New(a.registry, server.Config{Addr: a.cfg.Metrics.ListenAddr}, a.logger)
	if err := srv.Start(); err != nil {
		return types.NewError(types.ErrConfiguration, "start metrics endpoint").WithCause(err)
	}
	a.onClose(srv.Shutdown)

	report, runErr := runner.Run(ctx)
	if report != nil {
		if err := a.printReport(report); err != nil {
			a.logger.Warn("print report failed", zap.Error(err))
		}
	}
	return runErr
}

func (a *App) printReport(report *workflow.Report) error {
	if a.jsonOutput {
		return writeJSON(a.stdout, report)
	}

	w := a.stdout
	fmt.Fprintf(w, "run %s\n", report.RunID)
	for _, res := range report.Results {
		fmt.Fprintf(w, "\nprompt: %s\n", res.Prompt)
		for _, img := range res.Images {
			fmt.Fprintf(w, "  image %-12s %-9s %s\n", img.ID, img.State, img.URL)
		}
		if res.Best != nil {
			if res.Best.Scored {
				fmt.Fprintf(w, "  best   #%d score %d  %s\n", res.Best.Index, res.Best.Score, res.Best.URL)
			} else {
				fmt.Fprintf(w, "  best   #%d  %s\n", res.Best.Index, res.Best.URL)
			}
		}
		if res.Video != nil {
			fmt.Fprintf(w, "  video %-12s %-9s %s\n", res.Video.ID, res.Video.State, res.Video.URL)
		}
		for _, file := range res.Files {
			fmt.Fprintf(w, "  file   %s\n", file)
		}
		for _, c := range res.Classified {
			fmt.Fprintf(w, "  moved  %s -> %s\n", c.Source, c.Destination)
		}
		for _, issue := range res.Issues {
			fmt.Fprintf(w, "  issue  [%s] %s: %s\n", issue.Stage, issue.Target, issue.Error)
		}
	}

	s := report.Summary()
	fmt.Fprintf(w, "\n%d prompts, %d tasks: %d succeeded, %d failed, %d timed out, %d videos\n",
		s.Prompts, s.Submitted, s.Succeeded, s.Failed, s.TimedOut, s.Videos)
	if report.Error != "" {
		fmt.Fprintf(w, "error: %s\n", report.Error)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
