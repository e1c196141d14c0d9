package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erazemk/stocktaker/internal/catalog"
	"github.com/erazemk/stocktaker/internal/wizard"
)

// chooser drives an open product picker.
type chooser interface {
	Search(query string) error
	NextPage() (bool, error)
	PrevPage() (bool, error)
	Choose(i int) error
}

// editorChooser adapts the output editor's picker to chooser.
type editorChooser struct {
	e *wizard.OutputEditor
}

func (c editorChooser) Search(query string) error {
	c.e.Picker().Search(query)
	return nil
}

func (c editorChooser) NextPage() (bool, error) { return c.e.Picker().Next(), nil }
func (c editorChooser) PrevPage() (bool, error) { return c.e.Picker().Prev(), nil }
func (c editorChooser) Choose(i int) error      { return c.e.Choose(i) }

func (a *app) renderPicker(p *catalog.Picker) {
	header := fmt.Sprintf("Products, page %d/%d, %d matches", p.PageIndex()+1, p.TotalPages(), p.Matches())
	if q := p.Query(); q != "" {
		header += fmt.Sprintf(" for %q", q)
	}
	fmt.Fprintln(a.out, header+":")
	for i, product := range p.Page() {
		fmt.Fprintf(a.out, "  %2d) %s\n", i+1, product.Name)
	}
}

// pick runs the picker until a product is chosen or the user gives up. It
// reports whether a product was chosen.
func (a *app) pick(c chooser, view func() *catalog.Picker) (bool, error) {
	for {
		a.renderPicker(view())
		line, err := a.prompt("Number to choose, /text to search, n/p for next/previous page, q to cancel: ")
		if err != nil {
			return false, err
		}

		switch {
		case line == "q":
			return false, nil
		case line == "n":
			moved, err := c.NextPage()
			if err != nil {
				return false, err
			}
			if !moved {
				fmt.Fprintln(a.out, "Already on the last page.")
			}
		case line == "p":
			moved, err := c.PrevPage()
			if err != nil {
				return false, err
			}
			if !moved {
				fmt.Fprintln(a.out, "Already on the first page.")
			}
		case strings.HasPrefix(line, "/"):
			if err := c.Search(strings.TrimSpace(line[1:])); err != nil {
				return false, err
			}
		default:
			n, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintln(a.out, "Unknown input.")
				continue
			}
			if err := c.Choose(n - 1); err != nil {
				fmt.Fprintln(a.out, err)
				continue
			}
			return true, nil
		}
	}
}
