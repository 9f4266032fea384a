package gpu

// Vertex is one corner of a primitive, in screen space with the drawing
// offset already applied, spec §4.5 "Primitive decoding".
type Vertex struct {
	X, Y    int32
	R, G, B uint8
	U, V    uint8
}

// TexDepth identifies the source texel format, spec §4.5.
type TexDepth uint8

const (
	TexDepthNone  TexDepth = 0
	TexDepth4BPP  TexDepth = 1
	TexDepth8BPP  TexDepth = 2
	TexDepth15BPP TexDepth = 3
)

// Triangle is one rasterizer-ready primitive. The rasterizer itself is out
// of scope (spec.md's non-goals exclude a software rasterizer); this is the
// handoff shape an external renderer consumes.
type Triangle struct {
	V                [3]Vertex
	TexPageX, TexPageY uint16
	CLUT             uint16
	TexDepth         TexDepth
	SemiTransMode    uint8
	Textured         bool
	SemiTransparent  bool
	RawTexture       bool
}

// DrawList accumulates the triangles emitted by one frame's GP0 commands.
// Grounded on go-jeebie's jeebie/video.FrameBuffer double-buffering idea
// (one buffer being written while the previously completed one is read by
// the renderer), generalized from a pixel buffer to a primitive list since
// rasterization itself is a renderer concern.
type DrawList struct {
	Triangles []Triangle
}

func (d *DrawList) reset() {
	d.Triangles = d.Triangles[:0]
}

func (d *DrawList) push(t Triangle) {
	d.Triangles = append(d.Triangles, t)
}
