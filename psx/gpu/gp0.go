package gpu

// WriteGP0 implements bus.GPU / spec §4.5's GP0 state machine.
func (g *GPU) WriteGP0(word uint32) {
	switch g.state {
	case gp0Idle:
		g.beginCommand(word)
	case gp0CollectingParams:
		g.paramBuf = append(g.paramBuf, word)
		if len(g.paramBuf) >= g.paramsNeeded {
			g.execute()
		}
	case gp0ReceivingVRAMData:
		g.writeTransferWord(word)
	case gp0Polyline:
		g.stepPolyline(word)
	}
}

func (g *GPU) beginCommand(word uint32) {
	// A new GP0 write cancels any active VRAM->CPU read, spec §4.5.
	g.readXfer.active = false

	opcode := byte(word >> 24)
	n := paramCount(opcode)
	g.cmdWord = word
	g.paramBuf = g.paramBuf[:0]

	switch n {
	case 0:
		g.runCommand(opcode, word, nil)
	case paramCountPolyline:
		g.state = gp0Polyline
		g.polylineGouraud = opcode&0x10 != 0
		g.polylineHave = false
	case paramCountCPUToVRAM:
		g.state = gp0CollectingParams
		g.paramsNeeded = 2 // 3 words with the command word: destination, size
	default:
		g.state = gp0CollectingParams
		g.paramsNeeded = n
	}
}

func (g *GPU) execute() {
	opcode := byte(g.cmdWord >> 24)
	g.runCommand(opcode, g.cmdWord, g.paramBuf)

	if g.state != gp0ReceivingVRAMData {
		g.state = gp0Idle
	}
}

func (g *GPU) runCommand(opcode byte, cmd uint32, params []uint32) {
	switch {
	case opcode == 0x02:
		g.cmdFillRect(cmd, params)
	case opcode >= 0x20 && opcode <= 0x3F:
		g.cmdPolygon(opcode, cmd, params)
	case opcode >= 0x40 && opcode <= 0x5F:
		g.cmdLine(opcode, cmd, params)
	case opcode >= 0x60 && opcode <= 0x7F:
		g.cmdRect(opcode, cmd, params)
	case opcode >= 0x80 && opcode <= 0x9F:
		g.cmdVRAMToVRAM(params)
	case opcode >= 0xA0 && opcode <= 0xBF:
		g.cmdCPUToVRAM(params)
	case opcode >= 0xC0 && opcode <= 0xDF:
		g.cmdVRAMToCPU(params)
	case opcode == 0xE1:
		g.cmdSetTexpage(cmd)
	case opcode == 0xE2:
		g.cmdSetTexWindow(cmd)
	case opcode == 0xE3:
		g.clipX1, g.clipY1 = int32(cmd&0x3FF), int32((cmd>>10)&0x1FF)
	case opcode == 0xE4:
		g.clipX2, g.clipY2 = int32(cmd&0x3FF), int32((cmd>>10)&0x1FF)
	case opcode == 0xE5:
		g.drawOffsetX = signExtend11(uint16(cmd & 0x7FF))
		g.drawOffsetY = signExtend11(uint16((cmd >> 11) & 0x7FF))
	case opcode == 0xE6:
		g.maskSetOnDraw = cmd&1 != 0
		g.maskCheckOnDraw = cmd&2 != 0
		g.gpustat = setBit(g.gpustat, statMaskSetBit, g.maskSetOnDraw)
		g.gpustat = setBit(g.gpustat, statMaskCheckBit, g.maskCheckOnDraw)
	case opcode == 0x1F:
		g.gpustat |= 1 << statIRQ1Bit
	default:
		// NOP / unimplemented command, spec §4.5 only enumerates the
		// families above; anything else is consumed without effect.
		g.logger.Debug("unhandled GP0 opcode", "opcode", opcode)
	}
}

func setBit(v uint32, bit uint, set bool) uint32 {
	if set {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

func signExtend11(v uint16) int32 {
	return int32(int16(v<<5)) >> 5
}

func colorFromWord(word uint32) (r, g, b uint8) {
	return uint8(word), uint8(word >> 8), uint8(word >> 16)
}

func extractXY(word uint32) (x, y int32) {
	return int32(int16(word & 0xFFFF)), int32(int16(word >> 16))
}

// decodeTexpage implements the shared texpage-word layout used both by the
// GP0(E1) environment command and the per-polygon texpage parameter word,
// spec §4.5 "GPUSTAT layout" bits 0-8.
func decodeTexpage(raw uint16) (x, y uint16, semiTrans uint8, depth TexDepth) {
	x = uint16(raw&0xF) * 64
	y = uint16((raw>>4)&1) * 256
	semiTrans = uint8((raw >> 5) & 0x3)
	depth = TexDepth((raw >> 7) & 0x3)
	return
}

func (g *GPU) cmdSetTexpage(cmd uint32) {
	x, y, semi, depth := decodeTexpage(uint16(cmd))
	g.texPageX, g.texPageY = x, y
	g.semiTransMode = semi
	g.texDepth = depth
	g.gpustat &^= 0x1FF
	g.gpustat |= cmd & 0x1FF
	g.gpustat = setBit(g.gpustat, statTexDisableBit, cmd&(1<<11) != 0)
}

func (g *GPU) cmdSetTexWindow(cmd uint32) {
	g.texWindowMaskX = uint8(cmd & 0x1F)
	g.texWindowMaskY = uint8((cmd >> 5) & 0x1F)
	g.texWindowOffX = uint8((cmd >> 10) & 0x1F)
	g.texWindowOffY = uint8((cmd >> 15) & 0x1F)
}

func (g *GPU) cmdFillRect(cmd uint32, params []uint32) {
	r, gr, b := colorFromWord(cmd)
	destX, destY := int(int16(params[0]&0xFFFF)), int(int16(params[0]>>16))
	w, h := int(params[1]&0xFFFF), int(int16(params[1]>>16))
	destX &^= 0xF
	w = (w + 0xF) &^ 0xF

	pixel := packColor15(r, gr, b, false)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.vram.set(destX+x, destY+y, pixel)
		}
	}
	g.writeSeq++
}

func packColor15(r, gr, b uint8, mask bool) uint16 {
	v := uint16(r>>3) | uint16(gr>>3)<<5 | uint16(b>>3)<<10
	if mask {
		v |= 1 << 15
	}
	return v
}

func (g *GPU) cmdPolygon(opcode byte, cmd uint32, params []uint32) {
	quad := opcode&0x08 != 0
	gouraud := opcode&0x10 != 0
	textured := opcode&0x04 != 0
	semiTransparent := opcode&0x02 != 0
	rawTexture := opcode&0x01 != 0

	nverts := 3
	if quad {
		nverts = 4
	}

	var verts [4]Vertex
	var clut, texpageRaw uint16
	idx := 0
	for vi := 0; vi < nverts; vi++ {
		var r, gr, b uint8
		if vi == 0 || !gouraud {
			r, gr, b = colorFromWord(cmd)
		} else {
			r, gr, b = colorFromWord(params[idx])
			idx++
		}

		x, y := extractXY(params[idx])
		idx++

		var u, v uint8
		if textured {
			uvWord := params[idx]
			idx++
			u, v = uint8(uvWord), uint8(uvWord>>8)
			if vi == 0 {
				clut = uint16(uvWord >> 16)
			} else if vi == 1 {
				texpageRaw = uint16(uvWord >> 16)
			}
		}

		verts[vi] = Vertex{
			X: x + g.drawOffsetX, Y: y + g.drawOffsetY,
			R: r, G: gr, B: b, U: u, V: v,
		}
	}

	var texX, texY uint16
	semiMode := g.semiTransMode
	depth := TexDepthNone
	if textured {
		texX, texY, semiMode, depth = decodeTexpage(texpageRaw)
	}

	tri := Triangle{
		TexPageX: texX, TexPageY: texY, CLUT: clut, TexDepth: depth,
		SemiTransMode: semiMode, Textured: textured,
		SemiTransparent: semiTransparent, RawTexture: rawTexture,
	}
	tri.V = [3]Vertex{verts[0], verts[1], verts[2]}
	g.active.push(tri)

	if quad {
		tri.V = [3]Vertex{verts[1], verts[3], verts[2]}
		g.active.push(tri)
	}
}

// cmdLine implements the two fixed-length (non-polyline) line forms, spec
// §4.5 "Lines produce two triangles forming a 1-pixel-wide thin quad
// perpendicular to the dominant axis."
func (g *GPU) cmdLine(opcode byte, cmd uint32, params []uint32) {
	gouraud := opcode&0x10 != 0
	semiTransparent := opcode&0x02 != 0

	r0, g0, b0 := colorFromWord(cmd)
	x0, y0 := extractXY(params[0])

	var r1, g1, b1 uint8
	var x1, y1 int32
	if gouraud {
		r1, g1, b1 = colorFromWord(params[1])
		x1, y1 = extractXY(params[2])
	} else {
		r1, g1, b1 = r0, g0, b0
		x1, y1 = extractXY(params[1])
	}

	a := Vertex{X: x0 + g.drawOffsetX, Y: y0 + g.drawOffsetY, R: r0, G: g0, B: b0}
	b := Vertex{X: x1 + g.drawOffsetX, Y: y1 + g.drawOffsetY, R: r1, G: g1, B: b1}
	g.pushThinLine(a, b, semiTransparent)
}

// pushThinLine emits the two-triangle thin quad for one line segment,
// offsetting perpendicular to the dominant axis by half a pixel.
func (g *GPU) pushThinLine(a, b Vertex, semiTransparent bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	var ox, oy int32
	if abs32(dx) >= abs32(dy) {
		oy = 1
	} else {
		ox = 1
	}

	p0 := a
	p1 := Vertex{X: a.X + ox, Y: a.Y + oy, R: a.R, G: a.G, B: a.B}
	p2 := b
	p3 := Vertex{X: b.X + ox, Y: b.Y + oy, R: b.R, G: b.G, B: b.B}

	tri := Triangle{SemiTransparent: semiTransparent}
	tri.V = [3]Vertex{p0, p1, p2}
	g.active.push(tri)
	tri.V = [3]Vertex{p1, p3, p2}
	g.active.push(tri)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func (g *GPU) stepPolyline(word uint32) {
	if word&0xF000_F000 == 0x5000_5000 {
		g.state = gp0Idle
		return
	}

	if g.polylineGouraud && g.polylinePhase == 0 {
		r, gr, b := colorFromWord(word)
		g.polylinePending = Vertex{R: r, G: gr, B: b}
		g.polylinePhase = 1
		return
	}

	x, y := extractXY(word)
	v := g.polylinePending
	v.X, v.Y = x+g.drawOffsetX, y+g.drawOffsetY
	if !g.polylineGouraud {
		v.R, v.G, v.B = colorFromWord(g.cmdWord)
	}
	g.polylinePhase = 0

	if g.polylineHave {
		g.pushThinLine(g.polylinePrev, v, g.cmdWord&(1<<25) != 0)
	}
	g.polylinePrev = v
	g.polylineHave = true
}

func (g *GPU) cmdRect(opcode byte, cmd uint32, params []uint32) {
	sizeCode := (opcode >> 3) & 0x3
	textured := opcode&0x04 != 0
	semiTransparent := opcode&0x02 != 0

	r, gr, b := colorFromWord(cmd)
	idx := 0
	x0, y0 := extractXY(params[idx])
	idx++

	var u0, v0 uint8
	var clut uint16
	if textured {
		uvWord := params[idx]
		idx++
		u0, v0 = uint8(uvWord), uint8(uvWord>>8)
		clut = uint16(uvWord >> 16)
	}

	var w, h int32
	switch sizeCode {
	case 1:
		w, h = 1, 1
	case 2:
		w, h = 8, 8
	case 3:
		w, h = 16, 16
	default:
		sz := params[idx]
		idx++
		w, h = int32(int16(sz&0xFFFF)), int32(int16(sz>>16))
	}

	x0 += g.drawOffsetX
	y0 += g.drawOffsetY

	v00 := Vertex{X: x0, Y: y0, R: r, G: gr, B: b, U: u0, V: v0}
	v10 := Vertex{X: x0 + w, Y: y0, R: r, G: gr, B: b, U: u0 + uint8(w), V: v0}
	v01 := Vertex{X: x0, Y: y0 + h, R: r, G: gr, B: b, U: u0, V: v0 + uint8(h)}
	v11 := Vertex{X: x0 + w, Y: y0 + h, R: r, G: gr, B: b, U: u0 + uint8(w), V: v0 + uint8(h)}

	tri := Triangle{
		TexPageX: g.texPageX, TexPageY: g.texPageY, CLUT: clut, TexDepth: g.texDepth,
		Textured: textured, SemiTransparent: semiTransparent,
	}
	tri.V = [3]Vertex{v00, v10, v01}
	g.active.push(tri)
	tri.V = [3]Vertex{v10, v11, v01}
	g.active.push(tri)
}

func (g *GPU) cmdVRAMToVRAM(params []uint32) {
	srcX, srcY := int(int16(params[0]&0xFFFF)), int(int16(params[0]>>16))
	dstX, dstY := int(int16(params[1]&0xFFFF)), int(int16(params[1]>>16))
	w, h := int(params[2]&0xFFFF), int(params[2]>>16)
	if w == 0 {
		w = VRAMWidth
	}
	if h == 0 {
		h = VRAMHeight
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.vram.set(dstX+x, dstY+y, g.vram.get(srcX+x, srcY+y))
		}
	}
	g.writeSeq++
}

func (g *GPU) cmdCPUToVRAM(params []uint32) {
	destX, destY := int(int16(params[0]&0xFFFF)), int(int16(params[0]>>16))
	w, h := int(params[1]&0xFFFF), int(params[1]>>16)
	if w == 0 {
		w = VRAMWidth
	}
	if h == 0 {
		h = VRAMHeight
	}
	g.vramXfer = vramTransfer{
		active: true, destX: destX, destY: destY,
		width: w, height: h, remaining: w * h,
	}
	g.state = gp0ReceivingVRAMData
}

func (g *GPU) writeTransferWord(word uint32) {
	t := &g.vramXfer
	g.writePixel(t, uint16(word))
	if t.remaining > 0 {
		g.writePixel(t, uint16(word>>16))
	}
	g.writeSeq++
	if t.remaining <= 0 {
		t.active = false
		g.state = gp0Idle
	}
}

func (g *GPU) writePixel(t *vramTransfer, pixel uint16) {
	if t.remaining <= 0 {
		return
	}
	g.vram.set(t.destX+t.curX, t.destY+t.curY, pixel)
	t.curX++
	if t.curX >= t.width {
		t.curX = 0
		t.curY++
	}
	t.remaining--
}

func (g *GPU) cmdVRAMToCPU(params []uint32) {
	destX, destY := int(int16(params[0]&0xFFFF)), int(int16(params[0]>>16))
	w, h := int(params[1]&0xFFFF), int(params[1]>>16)
	if w == 0 {
		w = VRAMWidth
	}
	if h == 0 {
		h = VRAMHeight
	}
	g.readXfer = vramTransfer{
		active: true, destX: destX, destY: destY,
		width: w, height: h, remaining: w * h,
	}
}

func (g *GPU) readTransferWord() uint32 {
	t := &g.readXfer
	lo := g.readPixel(t)
	hi := g.readPixel(t)
	if t.remaining <= 0 {
		t.active = false
	}
	return uint32(lo) | uint32(hi)<<16
}

func (g *GPU) readPixel(t *vramTransfer) uint16 {
	if t.remaining <= 0 {
		return 0
	}
	v := g.vram.get(t.destX+t.curX, t.destY+t.curY)
	t.curX++
	if t.curX >= t.width {
		t.curX = 0
		t.curY++
	}
	t.remaining--
	return v
}
