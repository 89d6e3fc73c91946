package report

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// widgetBox locates one form widget: 1-based page number and its rect in PDF
// user space (llx, lly, urx, ury).
type widgetBox struct {
	page int
	rect [4]float64
}

// formWidgets reads the document's AcroForm and returns every named field's
// widget geometry. Fields without a usable name or rect are skipped.
func formWidgets(path string) (map[string]widgetBox, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading document: %w", err)
	}
	root, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}

	pageNumbers, err := collectPageNumbers(ctx, root)
	if err != nil {
		return nil, err
	}

	acroObj, found := root.Find("AcroForm")
	if !found {
		return map[string]widgetBox{}, nil
	}
	acro, err := ctx.DereferenceDict(acroObj)
	if err != nil {
		return nil, fmt.Errorf("error reading form dictionary: %w", err)
	}
	fieldsObj, found := acro.Find("Fields")
	if !found {
		return map[string]widgetBox{}, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("error reading form fields: %w", err)
	}

	out := map[string]widgetBox{}
	for _, fieldObj := range fields {
		field, err := ctx.DereferenceDict(fieldObj)
		if err != nil {
			continue
		}
		nameObj, found := field.Find("T")
		if !found {
			continue
		}
		name, ok := nameObj.(types.StringLiteral)
		if !ok {
			continue
		}

		// A field carrying its own widget holds the rect directly; a
		// parent field delegates to its first kid widget.
		widget := field
		if _, found := widget.Find("Rect"); !found {
			if kidsObj, found := field.Find("Kids"); found {
				kids, err := ctx.DereferenceArray(kidsObj)
				if err != nil || len(kids) == 0 {
					continue
				}
				widget, err = ctx.DereferenceDict(kids[0])
				if err != nil {
					continue
				}
			}
		}

		rectObj, found := widget.Find("Rect")
		if !found {
			continue
		}
		rectArr, err := ctx.DereferenceArray(rectObj)
		if err != nil || len(rectArr) != 4 {
			continue
		}
		var rect [4]float64
		valid := true
		for i, v := range rectArr {
			n, ok := numericValue(v)
			if !ok {
				valid = false
				break
			}
			rect[i] = n
		}
		if !valid {
			continue
		}

		page := 1
		if pObj, found := widget.Find("P"); found {
			if ref, ok := pObj.(types.IndirectRef); ok {
				if n, ok := pageNumbers[ref.ObjectNumber.Value()]; ok {
					page = n
				}
			}
		}
		out[name.Value()] = widgetBox{page: page, rect: rect}
	}
	return out, nil
}

// collectPageNumbers maps page object numbers to 1-based page indices by
// walking the page tree in order.
func collectPageNumbers(ctx *model.Context, root types.Dict) (map[int]int, error) {
	pagesObj, found := root.Find("Pages")
	if !found {
		return nil, fmt.Errorf("document has no page tree")
	}

	numbers := map[int]int{}
	next := 0
	var walk func(o types.Object) error
	walk = func(o types.Object) error {
		ref, isRef := o.(types.IndirectRef)
		node, err := ctx.DereferenceDict(o)
		if err != nil {
			return err
		}
		if kidsObj, found := node.Find("Kids"); found {
			kids, err := ctx.DereferenceArray(kidsObj)
			if err != nil {
				return err
			}
			for _, kid := range kids {
				if err := walk(kid); err != nil {
					return err
				}
			}
			return nil
		}
		if isRef {
			next++
			numbers[ref.ObjectNumber.Value()] = next
		}
		return nil
	}
	if err := walk(pagesObj); err != nil {
		return nil, fmt.Errorf("error walking page tree: %w", err)
	}
	return numbers, nil
}

func numericValue(o types.Object) (float64, bool) {
	switch x := o.(type) {
	case types.Integer:
		return float64(x.Value()), true
	case types.Float:
		return x.Value(), true
	}
	return 0, false
}
