package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для просмотра pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipeline definitions",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipeline definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TASKS"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				ids := make([]string, len(p.Tasks))
				for j, t := range p.Tasks {
					ids[j] = t.ID
				}
				rows[i] = []string{p.Name, strings.Join(ids, ", ")}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "STAGE", "KIND", "JOB", "DEPENDS_ON"}
			rows := make([][]string, len(pipeline.Tasks))
			for i, t := range pipeline.Tasks {
				rows[i] = []string{t.ID, t.Stage, t.Kind, t.Job, strings.Join(t.DependsOn, ", ")}
			}

			out.Print(headers, rows, pipeline)
			return nil
		},
	}
}
