package plotting

import (
	"image/color"

	"gonum.org/v1/plot/palette"
)

// 红-黄-绿三色渐变的端点，红色表示停车或拥堵
var (
	red    = [3]float64{0.8, 0, 0}
	yellow = [3]float64{1, 1, 0}
	green  = [3]float64{0, 0.8, 0}
)

const paletteSize = 100

// ramp 离散色带，实现palette.Palette
type ramp []color.Color

func (r ramp) Colors() []color.Color {
	return r
}

// at 色带上归一化位置f∈[0,1]对应的颜色
func (r ramp) at(f float64) color.Color {
	i := int(f * float64(len(r)-1))
	return r[min(max(i, 0), len(r)-1)]
}

func mix(a, b [3]float64, f float64) color.NRGBA {
	c := func(x, y float64) uint8 { return uint8((x + (y-x)*f) * 255) }
	return color.NRGBA{R: c(a[0], b[0]), G: c(a[1], b[1]), B: c(a[2], b[2]), A: 255}
}

// RedYellowGreen 红-黄-绿色带
// 参数：n-颜色数，reversed-是否反转为绿-黄-红（密度与流量使用反转色带，高值为红）
func RedYellowGreen(n int, reversed bool) palette.Palette {
	n = max(n, 2)
	r := make(ramp, n)
	for i := range n {
		f := float64(i) / float64(n-1)
		if reversed {
			f = 1 - f
		}
		if f < 0.5 {
			r[i] = mix(red, yellow, f*2)
		} else {
			r[i] = mix(yellow, green, f*2-1)
		}
	}
	return r
}
