package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/stocktaker/internal/client"
)

func (a *app) productsCommand() *cobra.Command {
	var q client.ProductQuery
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.session()
			if err != nil {
				return err
			}
			page, err := c.ListProducts(cmd.Context(), q)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTOCK\tSAGE\tCOUNT")
			for _, p := range page.Products {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.ProductCategory, p.StockCategory, p.SageCode, p.StockCount)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.PerPage > 0 {
				fmt.Fprintf(a.out, "Page %d, %d of %d products.\n", page.Page, len(page.Products), page.Total)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Search, "search", "q", "", "filter by name")
	f.StringVar(&q.StockCategory, "stock-category", "", "filter by stock category")
	f.StringVar(&q.ProductCategory, "category", "", "filter by product category")
	f.IntVar(&q.Page, "page", 0, "page number, starting at 1")
	f.IntVar(&q.PerPage, "per-page", 0, "products per page (default: all)")
	return cmd
}
