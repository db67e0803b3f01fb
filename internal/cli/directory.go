package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDirectoryCmd создаёт группу команд для справочника цеха.
func NewDirectoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage the shop floor directory",
	}

	cmd.AddCommand(
		newDirectoryMachinesCmd(clientFn, outputFn),
		newDirectoryAddMachineCmd(clientFn, outputFn),
		newDirectoryAddOperatorCmd(clientFn, outputFn),
		newDirectoryAssignCmd(clientFn, outputFn),
		newDirectoryUnassignCmd(clientFn, outputFn),
	)

	return cmd
}

func newDirectoryMachinesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "machines",
		Short: "List machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			machines, err := client.ListMachines()
			if err != nil {
				return err
			}

			headers := []string{"ID", "CODE", "NAME", "ACTIVE", "CREATED"}
			rows := make([][]string, len(machines))
			for i, m := range machines {
				rows[i] = []string{m.ID, m.Code, m.Name, strconv.FormatBool(m.IsActive), m.CreatedAt}
			}

			out.Print(headers, rows, machines)
			return nil
		},
	}
}

func newDirectoryAddMachineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var code, name string

	cmd := &cobra.Command{
		Use:   "add-machine",
		Short: "Add a machine to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			m, err := client.CreateMachine(code, name)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine created: %s", m.ID))
			out.Print(
				[]string{"ID", "CODE", "NAME", "ACTIVE", "CREATED"},
				[][]string{{m.ID, m.Code, m.Name, strconv.FormatBool(m.IsActive), m.CreatedAt}},
				m,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Machine code (required)")
	cmd.Flags().StringVar(&name, "name", "", "Machine name (required)")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newDirectoryAddOperatorCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, role string

	cmd := &cobra.Command{
		Use:   "add-operator",
		Short: "Add an operator to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			o, err := client.CreateOperator(name, role)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Operator created: %s", o.ID))
			out.Print(
				[]string{"ID", "NAME", "ROLE", "ACTIVE", "CREATED"},
				[][]string{{o.ID, o.Name, o.Role, strconv.FormatBool(o.IsActive), o.CreatedAt}},
				o,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Operator name (required)")
	cmd.Flags().StringVar(&role, "role", "OPERATOR", "Role (OPERATOR or SUPERVISOR)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newDirectoryAssignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "assign MACHINE_ID OPERATOR_ID",
		Short: "Assign an operator to a machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.AssignOperator(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Operator %s assigned to machine %s", args[1], args[0]))
			return nil
		},
	}
}

func newDirectoryUnassignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign MACHINE_ID OPERATOR_ID",
		Short: "Remove an operator assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.UnassignOperator(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Operator %s unassigned from machine %s", args[1], args[0]))
			return nil
		},
	}
}
