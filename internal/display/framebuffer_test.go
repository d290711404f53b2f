package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPixel_ClampsOutOfBounds(t *testing.T) {
	fb := NewFramebuffer(8, 8)
	assert.NotPanics(t, func() {
		fb.SetPixel(-1, 0, true)
		fb.SetPixel(0, -1, true)
		fb.SetPixel(100, 100, true)
	})
	assert.False(t, fb.GetPixel(-1, 0))
}

func TestSetPixel_MSBFirst(t *testing.T) {
	fb := NewFramebuffer(8, 1)
	fb.SetPixel(0, 0, true)
	assert.Equal(t, byte(0x80), fb.Bytes()[0])

	fb.Clear()
	fb.SetPixel(7, 0, true)
	assert.Equal(t, byte(0x01), fb.Bytes()[0])
}

func TestHVLine(t *testing.T) {
	fb := NewFramebuffer(10, 10)
	fb.HLine(2, 6, 3, true)
	for x := 2; x <= 6; x++ {
		assert.True(t, fb.GetPixel(x, 3), "x=%d", x)
	}
	assert.False(t, fb.GetPixel(1, 3))
	assert.False(t, fb.GetPixel(7, 3))

	fb.VLine(4, 1, 5, true)
	for y := 1; y <= 5; y++ {
		assert.True(t, fb.GetPixel(4, y), "y=%d", y)
	}
}

func TestLine_Diagonal(t *testing.T) {
	fb := NewFramebuffer(10, 10)
	fb.Line(0, 0, 4, 4, true)
	for i := 0; i <= 4; i++ {
		assert.True(t, fb.GetPixel(i, i))
	}
}

func TestFillRectAndRect(t *testing.T) {
	fb := NewFramebuffer(10, 10)
	fb.FillRect(2, 2, 3, 3, true)
	for y := 2; y < 5; y++ {
		for x := 2; x < 5; x++ {
			assert.True(t, fb.GetPixel(x, y))
		}
	}

	fb2 := NewFramebuffer(10, 10)
	fb2.Rect(2, 2, 4, 4, true)
	assert.True(t, fb2.GetPixel(2, 2))
	assert.True(t, fb2.GetPixel(5, 2))
	assert.True(t, fb2.GetPixel(2, 5))
	assert.False(t, fb2.GetPixel(3, 3))
}

func TestBlitGlyph(t *testing.T) {
	fb := NewFramebuffer(16, 16)
	g := Glyph{Width: 8, Height: 1, Stride: 1, Bits: []byte{0x80}}
	fb.BlitGlyph(g, 4, 4)
	assert.True(t, fb.GetPixel(4, 4))
	assert.False(t, fb.GetPixel(5, 4))
}

func TestBlitScaled3x2_PreservesAspectAndCount(t *testing.T) {
	src := NewFramebuffer(4, 4)
	src.FillRect(0, 0, 4, 4, true)
	dst := NewFramebuffer(10, 10)

	dst.BlitScaled3x2(src, 0, 0)

	expectedSide := 4 * 3 / 2
	for y := 0; y < expectedSide; y++ {
		for x := 0; x < expectedSide; x++ {
			assert.True(t, dst.GetPixel(x, y), "x=%d y=%d", x, y)
		}
	}
	assert.False(t, dst.GetPixel(expectedSide, 0))
}
