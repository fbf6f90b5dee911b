package extract

import (
	"bytes"
	"encoding/xml"
	"strings"

	"ragspan/internal/domain"
)

// Shapes of `pdftotext -bbox-layout` XHTML output:
// html > body > doc > page > flow > block > line > word.
type bboxDoc struct {
	Pages []bboxPage `xml:"body>doc>page"`
}

type bboxPage struct {
	Width  float64    `xml:"width,attr"`
	Height float64    `xml:"height,attr"`
	Flows  []bboxFlow `xml:"flow"`
}

type bboxFlow struct {
	Blocks []bboxBlock `xml:"block"`
}

type bboxBlock struct {
	Lines []bboxLine `xml:"line"`
}

type bboxLine struct {
	Words []bboxWord `xml:"word"`
}

type bboxWord struct {
	XMin float64 `xml:"xMin,attr"`
	YMin float64 `xml:"yMin,attr"`
	XMax float64 `xml:"xMax,attr"`
	YMax float64 `xml:"yMax,attr"`
	Text string  `xml:",chardata"`
}

func parseBBoxLayout(out []byte) (domain.Layout, error) {
	dec := xml.NewDecoder(bytes.NewReader(out))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var doc bboxDoc
	if err := dec.Decode(&doc); err != nil {
		return domain.Layout{}, err
	}

	layout := domain.Layout{Pages: make([]domain.PageLayout, 0, len(doc.Pages))}
	for _, p := range doc.Pages {
		pl := domain.PageLayout{Width: p.Width, Height: p.Height}
		for _, f := range p.Flows {
			for _, b := range f.Blocks {
				for _, l := range b.Lines {
					var ll domain.LineLayout
					for _, w := range l.Words {
						text := strings.TrimSpace(w.Text)
						if text == "" {
							continue
						}
						word := domain.Word{Text: text}
						box := domain.BoundingBox{X0: w.XMin, Y0: w.YMin, X1: w.XMax, Y1: w.YMax}
						if !box.Empty() {
							word.Box = &box
						}
						ll.Words = append(ll.Words, word)
					}
					if len(ll.Words) > 0 {
						pl.Lines = append(pl.Lines, ll)
					}
				}
			}
		}
		layout.Pages = append(layout.Pages, pl)
	}
	return layout, nil
}
