package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/edp1096/dcop/pkg/solver"
)

// savePlot draws every unknown of a sweep against the swept value. The file
// extension picks the image format.
func savePlot(res *solver.SweepResult, file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("DC sweep of %s", res.Source)
	p.X.Label.Text = res.Source
	p.Y.Label.Text = "V / A"
	p.Add(plotter.NewGrid())

	for i, name := range res.Names() {
		series, _ := res.Series(name)
		xys := make(plotter.XYs, len(series))
		for j, v := range series {
			xys[j].X = res.Sweep[j]
			xys[j].Y = v
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
