package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/media/classify"
)

func (a *App) newClassifyCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "classify [dir]",
		Short: "Rename and sort media files into category folders",
		Long: `Classify asks the vision model (images) or the text model (text files)
for a descriptive name and a category, then moves every supported file in
the directory into <dir>/<category>/. Files already inside a subdirectory
are left alone. Model failures fall back to the original name and "misc".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := classify.ParseMode(mode)
			if err != nil {
				return err
			}
			dir := a.cfg.Workflow.DownloadDir
			if len(args) == 1 {
				dir = args[0]
			}

			asker, err := a.chatClient()
			if err != nil {
				return err
			}
			analyzer := classify.NewChatAnalyzer(asker, a.cfg.Analysis.VisionModel, a.cfg.Analysis.TextModel)
			org := classify.NewOrganizer(dir, analyzer, m, a.logger)
			org.OnMoved(func(as classify.Assignment) {
				a.metrics.RecordFileClassified(string(as.Kind), as.Category)
			})

			a.logger.Info("organizing directory",
				zap.String("root", org.Root()), zap.String("mode", string(m)))
			summary, err := org.OrganizeDir(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, summary)
			}
			for _, mv := range summary.Moved {
				fmt.Fprintf(a.stdout, "%s -> %s\n", mv.Source, mv.Destination)
			}
			for _, f := range summary.Failed {
				fmt.Fprintf(a.stdout, "failed %s: %s\n", f.Path, f.Error)
			}
			fmt.Fprintf(a.stdout, "%d files found, %d moved, %d failed\n",
				summary.Found, len(summary.Moved), len(summary.Failed))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(classify.ModeRenameClassify),
		"rename-classify or classify-only")
	return cmd
}
