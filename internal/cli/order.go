package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewOrderCmd создаёт группу команд для управления заказами.
func NewOrderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage production orders",
	}

	cmd.AddCommand(
		newOrderListCmd(clientFn, outputFn),
		newOrderCreateCmd(clientFn, outputFn),
		newOrderShowCmd(clientFn, outputFn),
		newOrderApproveCmd(clientFn, outputFn),
		newOrderCancelCmd(clientFn, outputFn),
		newOrderAuditCmd(clientFn, outputFn),
	)

	return cmd
}

func orderRow(o *OrderResponse) []string {
	progress := ""
	if o.Summary != nil {
		progress = fmt.Sprintf("%.1f%%", o.Summary.Progress)
	}
	return []string{o.ID, o.Number, o.Status, o.Priority, progress, o.CreatedAt}
}

var orderHeaders = []string{"ID", "NUMBER", "STATUS", "PRIORITY", "PROGRESS", "CREATED"}

func newOrderListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			orders, err := client.ListOrders(ListOrdersOpts{Status: status, Limit: limit})
			if err != nil {
				return err
			}

			rows := make([][]string, len(orders))
			for i := range orders {
				rows[i] = orderRow(&orders[i])
			}

			out.Print(orderHeaders, rows, orders)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, WAIT_APPROVAL, IN_PROGRESS, COMPLETED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newOrderCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order from a plan file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(planFile)
			if err != nil {
				return fmt.Errorf("failed to read plan file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("plan file is not valid JSON")
			}

			order, err := client.CreateOrder(data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Order created: %s", order.ID))
			out.Print(orderHeaders, [][]string{orderRow(order)}, order)
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "Path to JSON plan file (required)")
	cmd.MarkFlagRequired("plan")

	return cmd
}

func newOrderShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show order details with steps and machines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			order, err := client.GetOrder(args[0])
			if err != nil {
				return err
			}

			out.Print(orderHeaders, [][]string{orderRow(order)}, order)

			// Дерево этапов и машин — отдельной таблицей
			headers := []string{"STEP", "SEQ", "MACHINE_ID", "STATUS", "QUALITY", "NET_KG"}
			var rows [][]string
			for _, step := range order.Steps {
				for _, m := range step.Machines {
					net := ""
					if m.Calculated != nil {
						net = fmt.Sprintf("%.1f", m.Calculated.NetWeight)
					}
					rows = append(rows, []string{
						strconv.Itoa(step.StepIndex),
						strconv.Itoa(m.SequenceOrder),
						m.MachineID,
						m.Status,
						m.QualityStatus,
						net,
					})
				}
			}
			if len(rows) > 0 && !out.jsonMode {
				out.Table(headers, rows)
			}
			return nil
		},
	}
}

func newOrderApproveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string

	cmd := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve an order waiting for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			order, err := client.ApproveOrder(args[0], operatorID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Order approved: %s", order.Number))
			out.Print(orderHeaders, [][]string{orderRow(order)}, order)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Supervisor ID (required)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newOrderCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			order, err := client.CancelOrder(args[0], operatorID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Order cancelled: %s", order.Number))
			out.Print(orderHeaders, [][]string{orderRow(order)}, order)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Supervisor ID (required)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newOrderAuditCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit ID",
		Short: "Show order audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.ListAudit(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ACTION", "MACHINE_ID", "STOP_TYPE", "REASON", "CREATED"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.Action, e.MachineID, e.StopType, e.Reason, e.CreatedAt}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries")

	return cmd
}
