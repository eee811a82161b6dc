package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueryCmd создаёт команду запросов к curated-данным.
//
// Запрос задаётся либо текстом ("top 5 cities by profit"), либо
// флагами структурированного запроса (--metric, --group-by, ...).
func NewQueryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var metrics []string
	var groupBy string
	var filters []string
	var orderBy string
	var desc bool
	var limit int

	cmd := &cobra.Command{
		Use:   "query [TEXT]",
		Short: "Query curated data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := QueryRequest{}

			if len(metrics) > 0 {
				sq := &StructuredQuery{
					Metrics:    metrics,
					GroupBy:    groupBy,
					OrderBy:    orderBy,
					Descending: desc,
					Limit:      limit,
				}
				for _, f := range filters {
					filter, err := parseFilter(f)
					if err != nil {
						return err
					}
					sq.Filters = append(sq.Filters, filter)
				}
				req.Query = sq
			} else if len(args) == 1 {
				req.Text = args[0]
			} else {
				return fmt.Errorf("either query text or --metric is required")
			}

			result, err := client.ExecuteQuery(req)
			if err != nil {
				return err
			}

			if len(result.Rows) == 0 {
				out.Success("No rows")
				out.Print(nil, nil, result)
				return nil
			}

			// Колонки — из первой строки, в стабильном порядке
			headers := make([]string, 0, len(result.Rows[0]))
			for col := range result.Rows[0] {
				headers = append(headers, col)
			}
			sort.Strings(headers)

			rows := make([][]string, len(result.Rows))
			for i, row := range result.Rows {
				cells := make([]string, len(headers))
				for j, col := range headers {
					cells[j] = row[col]
				}
				rows[i] = cells
			}

			out.Print(headers, rows, result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&metrics, "metric", nil, "Metric column or aggregate, e.g. 'sum(profit)' (repeatable)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "Group by column")
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "Filter as FIELD=VALUE or FIELD<OP>VALUE (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Order by column or metric")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit result rows")

	return cmd
}

// parseFilter разбирает фильтр вида "category=Furniture" или "profit>=100".
func parseFilter(s string) (QueryFilter, error) {
	// Двухсимвольные операторы проверяются раньше односимвольных
	for _, op := range []string{"!=", ">=", "<=", "=", ">", "<"} {
		if idx := strings.Index(s, op); idx > 0 {
			return QueryFilter{
				Field: strings.TrimSpace(s[:idx]),
				Op:    op,
				Value: strings.TrimSpace(s[idx+len(op):]),
			}, nil
		}
	}
	return QueryFilter{}, fmt.Errorf("invalid filter %q, expected FIELD=VALUE", s)
}
