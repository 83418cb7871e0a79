// Package chart 将分类型时间序列绘制为折线图
package chart

import (
	"bytes"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Series 待绘制的数据
// Y 为 YTicks 的下标，NaN 表示该点缺失，折线在此处断开
type Series struct {
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Y      []float64
	YTicks []string
}

// Renderer PNG 渲染器
type Renderer struct {
	width  vg.Length
	height vg.Length
}

// NewRenderer 尺寸单位为英寸，非正数时使用 12x6
func NewRenderer(widthInch, heightInch int) *Renderer {
	if widthInch <= 0 {
		widthInch = 12
	}
	if heightInch <= 0 {
		heightInch = 6
	}
	return &Renderer{
		width:  vg.Length(widthInch) * vg.Inch,
		height: vg.Length(heightInch) * vg.Inch,
	}
}

// Render 返回 PNG 编码的图像
func (r *Renderer) Render(s Series) ([]byte, error) {
	if len(s.X) != len(s.Y) {
		return nil, fmt.Errorf("chart: x has %d points, y has %d", len(s.X), len(s.Y))
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel
	p.Add(plotter.NewGrid())

	for i, seg := range Segments(s.X, s.Y) {
		line, points, err := plotter.NewLinePoints(seg)
		if err != nil {
			return nil, fmt.Errorf("chart: segment %d: %w", i, err)
		}
		line.Color = plotutil.Color(0)
		line.Width = vg.Points(1.5)
		points.Shape = draw.CircleGlyph{}
		points.Color = plotutil.Color(0)
		p.Add(line, points)
	}

	if len(s.YTicks) > 0 {
		ticks := make([]plot.Tick, len(s.YTicks))
		for i, label := range s.YTicks {
			ticks[i] = plot.Tick{Value: float64(i), Label: label}
		}
		p.Y.Tick.Marker = plot.ConstantTicks(ticks)
		p.Y.Min = -0.5
		p.Y.Max = float64(len(s.YTicks)) - 0.5
	}
	if !hasValid(s.Y) {
		p.X.Min, p.X.Max = 0, 1
		if len(s.X) > 0 {
			p.X.Min, p.X.Max = minMax(s.X)
		}
	}

	w, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Segments 按 NaN 将序列切分为连续的若干段
func Segments(x, y []float64) []plotter.XYs {
	out := make([]plotter.XYs, 0, 1)
	var cur plotter.XYs
	for i := range min(len(x), len(y)) {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: x[i], Y: y[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func hasValid(y []float64) bool {
	for _, v := range y {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func minMax(v []float64) (float64, float64) {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}
