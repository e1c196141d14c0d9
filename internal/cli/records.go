package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/erazemk/stocktaker/internal/client"
	"github.com/erazemk/stocktaker/internal/validate"
)

func (a *app) stockTakeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stocktake",
		Aliases: []string{"st"},
		Short:   "Record and list stock takes",
	}

	var req client.StockTakeRequest
	submit := &cobra.Command{
		Use:   "submit PRODUCT_ID=COUNT...",
		Short: "Record counts for one product category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			take, err := parseCounts(args)
			if err != nil {
				return err
			}
			req.Take = take

			c, err := a.session()
			if err != nil {
				return err
			}
			st, err := c.SubmitStockTake(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Stock take %d recorded for %s:\n", st.ID, st.Date.Format("2006-01-02"))
			for _, id := range sortedIDs(st.Take) {
				fmt.Fprintf(a.out, "  %d = %s\n", id, st.Take[id])
			}
			return nil
		},
	}
	submit.Flags().StringVarP(&req.ProductCategory, "category", "c", "", "product category (required)")
	submit.Flags().StringVarP(&req.Date, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	_ = submit.MarkFlagRequired("category")

	var (
		category string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent stock takes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			takes, err := c.StockTakes(cmd.Context(), category, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tPRODUCTS")
			for _, t := range takes {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", t.ID, t.Date.Format("2006-01-02"), t.ProductCategory, len(t.Take))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&category, "category", "c", "", "only this product category")
	list.Flags().IntVarP(&limit, "limit", "n", 20, "how many to show")

	cmd.AddCommand(submit, list)
	return cmd
}

// parseCounts reads PRODUCT_ID=COUNT arguments.
func parseCounts(args []string) (map[int64]decimal.Decimal, error) {
	take := make(map[int64]decimal.Decimal, len(args))
	for _, arg := range args {
		idText, countText, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, validate.Errorf("take", "expected PRODUCT_ID=COUNT, got %q", arg)
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, validate.Errorf("take", "invalid product id %q", idText)
		}
		count, err := validate.Count(fmt.Sprintf("count of product %d", id), countText)
		if err != nil {
			return nil, err
		}
		take[id] = count
	}
	return take, nil
}

func (a *app) deliveriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deliveries",
		Aliases: []string{"del"},
		Short:   "Record and list deliveries",
	}

	var q client.DeliveryQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List and search previous deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			page, err := c.Deliveries(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tDATE\tPRODUCT\tQUANTITY\tSUPPLIER\tPLATE")
			for _, d := range page.Deliveries {
				name := d.ProductName
				if name == "" {
					name = strconv.FormatInt(d.Product, 10)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					d.BatchCode, d.DeliveryDate.Format("2006-01-02"), name, d.Quantity, d.Supplier, d.LicensePlate)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.PerPage > 0 {
				pages := max((page.Total+page.PerPage-1)/page.PerPage, 1)
				fmt.Fprintf(a.out, "Page %d/%d, %d deliveries.\n", page.Page, pages, page.Total)
			}
			return nil
		},
	}
	list.Flags().StringVarP(&q.Search, "search", "q", "", "match product, supplier, batch code or quantity")
	list.Flags().IntVar(&q.Page, "page", 1, "page number, 0 for every match")
	list.Flags().IntVar(&q.PerPage, "per-page", 0, "deliveries per page (default: 10)")

	next := &cobra.Command{
		Use:   "next-code",
		Short: "Show the batch code the next delivery gets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			code, err := c.NextBatchCode(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, code)
			return nil
		},
	}

	cmd.AddCommand(list, next, a.deliveryAddCommand())
	return cmd
}

func (a *app) deliveryAddCommand() *cobra.Command {
	var (
		req                         client.DeliveryRequest
		quantity, vanTemp, prodTemp string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a delivery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if req.Quantity, err = validate.Quantity("quantity", quantity); err != nil {
				return err
			}
			if req.VanTemperature, err = validate.Decimal("van_temperature", vanTemp); err != nil {
				return err
			}
			if req.ProductTemperature, err = validate.Decimal("product_temperature", prodTemp); err != nil {
				return err
			}

			c, err := a.session()
			if err != nil {
				return err
			}
			d, err := c.CreateDelivery(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Delivery recorded with batch code %d.\n", d.BatchCode)
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64VarP(&req.Product, "product", "p", 0, "product id")
	f.StringVarP(&quantity, "quantity", "q", "", "delivered quantity")
	f.StringVar(&req.Supplier, "supplier", "", "supplier")
	f.StringVar(&req.DriverName, "driver", "", "driver name")
	f.StringVar(&req.LicensePlate, "plate", "", "van license plate")
	f.StringVar(&req.Origin, "origin", "", "country of origin")
	f.StringVar(&vanTemp, "van-temp", "", "van temperature")
	f.StringVar(&prodTemp, "product-temp", "", "product temperature")
	f.StringVar(&req.DeliveryDate, "date", "", "delivery date as YYYY-MM-DD (default: today)")
	f.StringVar(&req.KillDate, "kill-date", "", "kill date as YYYY-MM-DD")
	f.StringVar(&req.UseByDate, "use-by", "", "use-by date as YYYY-MM-DD")
	f.StringVar(&req.SlaughterNumber, "slaughter-number", "", "slaughterhouse number")
	f.StringVar(&req.CutNumber, "cut-number", "", "cutting plant number")
	f.StringVar(&req.Notes, "notes", "", "free-form notes")
	f.BoolVar(&req.RedTractor, "red-tractor", false, "red tractor assured")
	f.BoolVar(&req.RSPCA, "rspca", false, "RSPCA assured")
	f.BoolVar(&req.OrganicAssured, "organic", false, "organic assured")
	f.IntVar(&req.BatchCode, "batch", 0, "batch code (default: next free)")
	for _, name := range []string{"product", "quantity", "supplier", "driver", "plate", "origin", "van-temp", "product-temp"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func sortedIDs(take map[int64]decimal.Decimal) []int64 {
	ids := make([]int64, 0, len(take))
	for id := range take {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
