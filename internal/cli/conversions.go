package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/stocktaker/internal/catalog"
	"github.com/erazemk/stocktaker/internal/client"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
	"github.com/erazemk/stocktaker/internal/wizard"
)

func (a *app) conversionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversions",
		Aliases: []string{"conv"},
		Short:   "Work with product conversions",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List your conversions in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			active, err := wizard.NewLoader(c, a.logger()).Fetch(cmd.Context())
			if err != nil {
				return err
			}
			return a.printActive(active)
		},
	}
	cmd.AddCommand(
		list,
		a.conversionShowCommand(),
		a.conversionStartCommand(),
		a.conversionCompleteCommand(),
		a.conversionCancelCommand(),
	)
	cmd.RunE = list.RunE
	return cmd
}

func (a *app) printActive(active []model.ActiveConversion) error {
	if len(active) == 0 {
		fmt.Fprintln(a.out, "No conversions in progress.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tINPUT\tQUANTITY")
	for _, ac := range active {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ac.Conversion.ID, ac.Conversion.CreatedAt.Local().Format("2006-01-02 15:04"), ac.Product.Name, ac.Input.Quantity)
	}
	return tw.Flush()
}

func (a *app) conversionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversion and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			detail, err := c.GetConversion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			names, err := productNames(cmd.Context(), c)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Conversion %s, %s\n", detail.Conversion.ID, detail.Conversion.Status)
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tPRODUCT\tQUANTITY\tSTORAGE")
			for _, it := range detail.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Type, names[it.ProductID], it.Quantity, it.StorageType)
			}
			return tw.Flush()
		},
	}
}

func (a *app) conversionStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Pick an input product and start a conversion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.session()
			if err != nil {
				return err
			}
			products, err := c.Products(ctx)
			if err != nil {
				return err
			}

			w := wizard.New(c, products, a.logger())
			if err := w.Begin(); err != nil {
				return err
			}
			chosen, err := a.pick(w, w.Picker)
			if err != nil {
				return err
			}
			if !chosen {
				w.Cancel()
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			return a.enterQuantity(ctx, w)
		},
	}
}

// enterQuantity asks for the input quantity until the conversion starts or
// the user stops retrying.
func (a *app) enterQuantity(ctx context.Context, w *wizard.Wizard) error {
	for {
		s, ok := w.State().(wizard.EnteringQuantity)
		if !ok {
			return fmt.Errorf("unexpected wizard step %s", wizard.StepName(w.State()))
		}
		text, err := a.prompt(fmt.Sprintf("Quantity of %s: ", s.Product.Name))
		if err != nil {
			return err
		}
		if err := w.SetQuantity(text); err != nil {
			return err
		}

		conv, err := w.Submit(ctx)
		if err == nil {
			fmt.Fprintf(a.out, "Started conversion %s.\n", conv.ID)
			fmt.Fprintf(a.out, "You have %d conversion(s) in progress.\n", len(w.Active()))
			return nil
		}
		if errors.Is(err, validate.ErrInvalid) {
			fmt.Fprintln(a.out, err)
			continue
		}

		fmt.Fprintf(a.out, "Could not start the conversion: %v\n", err)
		retry, cerr := a.confirm("Try again?")
		if cerr != nil {
			return cerr
		}
		if !retry {
			w.Cancel()
			return err
		}
	}
}

func (a *app) conversionCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Enter the outputs of a conversion and close it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.session()
			if err != nil {
				return err
			}
			detail, err := c.GetConversion(ctx, args[0])
			if err != nil {
				return err
			}
			if detail.Conversion.Status != model.ConversionInProgress {
				return fmt.Errorf("conversion %s is %s", detail.Conversion.ID, detail.Conversion.Status)
			}
			products, err := c.Products(ctx)
			if err != nil {
				return err
			}

			names := catalog.Index(products)
			for _, it := range detail.Items {
				if it.Type == model.ItemTypeInput {
					fmt.Fprintf(a.out, "Input: %s, %s\n", names[it.ProductID].Name, it.Quantity)
				}
			}

			e := wizard.NewOutputEditor(c, detail.Conversion.ID, products, a.logger())
			return a.editOutputs(ctx, e)
		},
	}
}

const editorHelp = "Commands: add, edit N, qty N VALUE, storage N TYPE, rm N, done, quit"

func (a *app) editOutputs(ctx context.Context, e *wizard.OutputEditor) error {
	fmt.Fprintln(a.out, editorHelp)
	for {
		a.renderRows(e.Rows())
		line, err := a.prompt("> ")
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "add", "a":
			e.Add()
			chosen, err := a.pick(editorChooser{e}, e.Picker)
			if err != nil {
				return err
			}
			if !chosen {
				e.ClosePicker()
				continue
			}
			if err := a.fillRow(e, len(e.Rows())-1); err != nil {
				return err
			}
		case "edit", "e":
			i, ok := a.rowArg(fields)
			if !ok {
				continue
			}
			if err := e.Edit(i); err != nil {
				fmt.Fprintln(a.out, err)
				continue
			}
			chosen, err := a.pick(editorChooser{e}, e.Picker)
			if err != nil {
				return err
			}
			if !chosen {
				e.ClosePicker()
			}
		case "qty", "q":
			i, ok := a.rowArg(fields)
			if !ok {
				continue
			}
			if len(fields) < 3 {
				fmt.Fprintln(a.out, "usage: qty N VALUE")
				continue
			}
			if err := e.SetQuantity(i, fields[2]); err != nil {
				fmt.Fprintln(a.out, err)
			}
		case "storage", "s":
			i, ok := a.rowArg(fields)
			if !ok {
				continue
			}
			if len(fields) < 3 {
				fmt.Fprintln(a.out, "usage: storage N rounds|freezer|fridge")
				continue
			}
			if err := e.SetStorage(i, fields[2]); err != nil {
				fmt.Fprintln(a.out, err)
			}
		case "rm":
			i, ok := a.rowArg(fields)
			if !ok {
				continue
			}
			if err := e.Remove(i); err != nil {
				fmt.Fprintln(a.out, err)
			}
		case "done", "d":
			submitted, err := a.submitOutputs(ctx, e)
			if err != nil {
				return err
			}
			if submitted {
				return nil
			}
		case "quit":
			fmt.Fprintln(a.out, "Nothing submitted.")
			return nil
		default:
			fmt.Fprintln(a.out, editorHelp)
		}
	}
}

// fillRow asks for the quantity and, for ordinary products, the storage type
// of a freshly added row.
func (a *app) fillRow(e *wizard.OutputEditor, i int) error {
	row := e.Rows()[i]
	qty, err := a.prompt(fmt.Sprintf("Quantity of %s: ", row.Product.Name))
	if err != nil {
		return err
	}
	if err := e.SetQuantity(i, qty); err != nil {
		return err
	}
	if row.Product.IsWaste() {
		return nil
	}

	for {
		st, err := a.prompt("Storage (rounds, freezer, fridge): ")
		if err != nil {
			return err
		}
		if st == "" {
			return nil
		}
		if err := e.SetStorage(i, st); err != nil {
			fmt.Fprintln(a.out, err)
			continue
		}
		return nil
	}
}

// submitOutputs confirms and sends the outputs. It reports whether the
// conversion was completed; a rejected or failed submit keeps the rows.
func (a *app) submitOutputs(ctx context.Context, e *wizard.OutputEditor) (bool, error) {
	summary, err := e.Review()
	if err != nil {
		fmt.Fprintln(a.out, err)
		return false, nil
	}
	ok, err := a.confirm(summary.String())
	if err != nil || !ok {
		return false, err
	}

	conv, err := e.Submit(ctx)
	if err != nil {
		fmt.Fprintln(a.out, err)
		return false, nil
	}
	fmt.Fprintf(a.out, "Conversion %s completed with %d output(s).\n", conv.ID, summary.Count)
	return true, nil
}

func (a *app) renderRows(rows []wizard.OutputRow) {
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No outputs yet.")
		return
	}
	fmt.Fprintln(a.out, "Outputs:")
	for i, r := range rows {
		qty := r.Quantity
		if qty == "" {
			qty = "?"
		}
		fmt.Fprintf(a.out, "  %d) %s, %s [%s]\n", i+1, r.Product.Name, qty, r.StorageType)
	}
}

func (a *app) rowArg(fields []string) (int, bool) {
	if len(fields) < 2 {
		fmt.Fprintf(a.out, "usage: %s N\n", fields[0])
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintf(a.out, "not a row number: %s\n", fields[1])
		return 0, false
	}
	return n - 1, true
}

func (a *app) conversionCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a conversion in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			if err := c.CancelConversion(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Conversion %s cancelled.\n", args[0])
			return nil
		},
	}
}

func productNames(ctx context.Context, c *client.Client) (map[int64]string, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(products)+1)
	for _, p := range catalog.WithWaste(products) {
		names[p.ID] = p.Name
	}
	return names, nil
}
