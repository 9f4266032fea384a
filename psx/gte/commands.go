package gte

// Command implements cpu.COP2's GTE command dispatch: the low 6 bits of the
// COP2 instruction word select the operation, bit 19 is the shift-fraction
// flag (sf), bit 10 is the limit-mode flag (lm), and for MVMVA bits 13-18
// select the matrix/vector/translation operands, spec §4.3.
func (g *GTE) Command(word uint32) {
	sf := word&(1<<19) != 0
	lm := word&(1<<10) != 0
	op := word & 0x3F

	switch op {
	case 0x01: // RTPS
		g.rtp(g.v[0], sf, lm)
	case 0x30: // RTPT
		g.rtp(g.v[0], sf, lm)
		g.rtp(g.v[1], sf, lm)
		g.rtp(g.v[2], sf, lm)
	case 0x06: // NCLIP
		g.nclip()
	case 0x0C: // OP
		g.outerProduct(sf, lm)
	case 0x12: // MVMVA
		g.mvmva(word, sf, lm)
	case 0x2D: // AVSZ3
		g.avsz(3, sf)
	case 0x2E: // AVSZ4
		g.avsz(4, sf)
	case 0x28: // SQR
		g.sqr(sf, lm)
	case 0x3D: // GPF
		g.gpf(sf, lm)
	case 0x3E: // GPL
		g.gpl(sf, lm)
	case 0x1E: // NCS
		g.lightNormal(g.v[0], sf, lm)
		g.pushRGBPlain()
	case 0x20: // NCT
		for i := 0; i < 3; i++ {
			g.lightNormal(g.v[i], sf, lm)
			g.pushRGBPlain()
		}
	case 0x1B: // NCCS
		g.lightNormal(g.v[0], sf, lm)
		g.modulateRGBC(sf, lm)
		g.pushRGBFromMAC()
	case 0x3F: // NCCT
		for i := 0; i < 3; i++ {
			g.lightNormal(g.v[i], sf, lm)
			g.modulateRGBC(sf, lm)
			g.pushRGBFromMAC()
		}
	case 0x13: // NCDS
		g.lightNormal(g.v[0], sf, lm)
		g.modulateRGBC(sf, lm)
		g.interpolateFarColor(sf, lm)
		g.pushRGBFromMAC()
	case 0x16: // NCDT
		for i := 0; i < 3; i++ {
			g.lightNormal(g.v[i], sf, lm)
			g.modulateRGBC(sf, lm)
			g.interpolateFarColor(sf, lm)
			g.pushRGBFromMAC()
		}
	case 0x10: // DPCS
		g.depthCueFromRGBC(sf, lm)
		g.pushRGBFromMAC()
	case 0x2A: // DPCT
		for i := 0; i < 3; i++ {
			g.depthCueFromRGBC(sf, lm)
			g.pushRGBFromMAC()
		}
	case 0x29: // DCPL
		g.modulateRGBC(sf, lm)
		g.interpolateFarColor(sf, lm)
		g.pushRGBFromMAC()
	case 0x11: // INTPL
		g.interpolateIRFromFarColor(sf, lm)
		g.pushRGBFromMAC()
	case 0x1C: // CC
		g.lightColorFromIR(sf, lm)
		g.modulateRGBC(sf, lm)
		g.pushRGBFromMAC()
	case 0x14: // CDP
		g.lightColorFromIR(sf, lm)
		g.modulateRGBC(sf, lm)
		g.interpolateFarColor(sf, lm)
		g.pushRGBFromMAC()
	default:
		g.logger.Debug("unimplemented GTE command", "op", op, "word", word)
	}
}

// mulMatVec computes, per component, T<<12 + M·V at full 64-bit precision
// (T scaled to align with the matrix product's 12 fractional bits).
func mulMatVec(m [3][3]int32, v [3]int32, t [3]int32) [3]int64 {
	var out [3]int64
	for i := 0; i < 3; i++ {
		out[i] = int64(t[i]) << 12
		for j := 0; j < 3; j++ {
			out[i] += int64(m[i][j]) * int64(v[j])
		}
	}
	return out
}

// macIR commits MAC1..3 and IR1..3 from raw 64-bit accumulator values,
// applying the sf shift and lm/standard saturation, spec §4.3.
func (g *GTE) macIR(raw [3]int64, sf bool, lm bool) {
	shift := uint(0)
	if sf {
		shift = 12
	}
	for i := 0; i < 3; i++ {
		v := raw[i] >> shift
		g.mac[i+1] = int32(v)
		g.ir[i+1] = saturateIR(v, lm)
	}
}

func saturateIR(v int64, lm bool) int32 {
	lo := int64(-32768)
	if lm {
		lo = 0
	}
	const hi = 32767
	if v < lo {
		return int32(lo)
	}
	if v > hi {
		return hi
	}
	return int32(v)
}

func clampU16(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func clampRGB(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// pushSXY shifts a new screen-space vertex into the SXY shift register,
// saturating to the 11-bit signed range hardware enforces.
func (g *GTE) pushSXY(x, y int32) {
	g.sxy[0] = g.sxy[1]
	g.sxy[1] = g.sxy[2]
	g.sxy[2] = [2]int32{saturateCoord(x), saturateCoord(y)}
}

func saturateCoord(v int32) int32 {
	if v < -0x400 {
		return -0x400
	}
	if v > 0x3FF {
		return 0x3FF
	}
	return v
}

// pushSZ shifts a new depth value into the SZ shift register.
func (g *GTE) pushSZ(z uint16) {
	g.sz[0] = g.sz[1]
	g.sz[1] = g.sz[2]
	g.sz[2] = g.sz[3]
	g.sz[3] = z
}

// pushRGB shifts a new color into the RGB color FIFO, tagging it with the
// current RGBC code byte.
func (g *GTE) pushRGB(r, gr, b uint8) {
	g.rgbFifo[0] = g.rgbFifo[1]
	g.rgbFifo[1] = g.rgbFifo[2]
	g.rgbFifo[2] = [4]uint8{r, gr, b, g.rgbc[3]}
}

func (g *GTE) pushRGBPlain() {
	g.pushRGB(clampRGB(g.ir[1]>>4), clampRGB(g.ir[2]>>4), clampRGB(g.ir[3]>>4))
}

func (g *GTE) pushRGBFromMAC() {
	g.pushRGB(clampRGB(g.mac[1]>>4), clampRGB(g.mac[2]>>4), clampRGB(g.mac[3]>>4))
}

// rtp implements the shared RTPS/RTPT body: project one vertex and push its
// screen coordinates and depth into the shift registers, spec §4.3.
func (g *GTE) rtp(v [3]int32, sf bool, lm bool) {
	raw := mulMatVec(g.rt, v, g.tr)
	g.macIR(raw, sf, lm)

	g.pushSZ(clampU16(int64(g.ir[3])))

	szDivisor := int64(g.sz[3])
	var q int64
	if szDivisor == 0 {
		q = 0x1FFFF
	} else {
		q = (int64(g.h) << 16) / szDivisor
		if q > 0x1FFFF {
			q = 0x1FFFF
		}
	}

	sx := (int64(g.ofx) + int64(g.ir[1])*q) >> 16
	sy := (int64(g.ofy) + int64(g.ir[2])*q) >> 16
	g.pushSXY(int32(sx), int32(sy))
}

// nclip implements the NCLIP winding-sign command, spec §4.3.
func (g *GTE) nclip() {
	x0, y0 := g.sxy[0][0], g.sxy[0][1]
	x1, y1 := g.sxy[1][0], g.sxy[1][1]
	x2, y2 := g.sxy[2][0], g.sxy[2][1]
	mac0 := int64(x0)*int64(y1-y2) + int64(x1)*int64(y2-y0) + int64(x2)*int64(y0-y1)
	g.mac[0] = int32(mac0)
}

// outerProduct implements OP: a cross-product-like operation using the
// rotation matrix's diagonal as per-axis scale factors, spec §4.3.
func (g *GTE) outerProduct(sf bool, lm bool) {
	d1, d2, d3 := g.rt[0][0], g.rt[1][1], g.rt[2][2]
	raw := [3]int64{
		int64(d2)*int64(g.ir[3]) - int64(d3)*int64(g.ir[2]),
		int64(d3)*int64(g.ir[1]) - int64(d1)*int64(g.ir[3]),
		int64(d1)*int64(g.ir[2]) - int64(d2)*int64(g.ir[1]),
	}
	g.macIR(raw, sf, lm)
}

// mvmva implements the general matrix*vector+translation command with
// operand selection bits, spec §4.3: only (R, V0, TR) is required for
// bring-up but the full selection matrix is implemented.
func (g *GTE) mvmva(word uint32, sf bool, lm bool) {
	mxSel := (word >> 17) & 3
	vSel := (word >> 15) & 3
	cvSel := (word >> 13) & 3

	var m [3][3]int32
	switch mxSel {
	case 0:
		m = g.rt
	case 1:
		m = g.light
	case 2:
		m = g.color
	case 3:
		// Reserved matrix selector; real hardware substitutes a garbage
		// matrix built from RGBC/otz bytes. We use the zero matrix, which
		// at least keeps the result well-defined.
	}

	var v [3]int32
	switch vSel {
	case 0:
		v = g.v[0]
	case 1:
		v = g.v[1]
	case 2:
		v = g.v[2]
	case 3:
		v = [3]int32{g.ir[1], g.ir[2], g.ir[3]}
	}

	var t [3]int32
	switch cvSel {
	case 0:
		t = g.tr
	case 1:
		t = g.bk
	case 2:
		t = g.fc
	case 3:
		// none
	}

	raw := mulMatVec(m, v, t)
	g.macIR(raw, sf, lm)
}

// avsz implements AVSZ3/AVSZ4: a weighted average of the SZ pipeline used
// to derive an ordering table Z value, spec §4.3.
func (g *GTE) avsz(n int, sf bool) {
	var sum int64
	var zsf int64
	if n == 3 {
		sum = int64(g.sz[1]) + int64(g.sz[2]) + int64(g.sz[3])
		zsf = int64(g.zsf3)
	} else {
		sum = int64(g.sz[0]) + int64(g.sz[1]) + int64(g.sz[2]) + int64(g.sz[3])
		zsf = int64(g.zsf4)
	}
	mac0 := zsf * sum
	g.mac[0] = int32(mac0)
	g.otz = clampU16(mac0 >> 12)
}

// sqr implements SQR: component-wise square of IR1..3, spec §4.3.
func (g *GTE) sqr(sf bool, lm bool) {
	raw := [3]int64{
		int64(g.ir[1]) * int64(g.ir[1]),
		int64(g.ir[2]) * int64(g.ir[2]),
		int64(g.ir[3]) * int64(g.ir[3]),
	}
	g.macIR(raw, sf, lm)
}

// gpf implements GPF: component-wise product of IR1..3 with IR0, spec §4.3.
func (g *GTE) gpf(sf bool, lm bool) {
	raw := [3]int64{
		int64(g.ir[1]) * int64(g.ir[0]),
		int64(g.ir[2]) * int64(g.ir[0]),
		int64(g.ir[3]) * int64(g.ir[0]),
	}
	g.macIR(raw, sf, lm)
}

// gpl implements GPL: accumulate IR1..3 * IR0 onto the current MAC, spec §4.3.
func (g *GTE) gpl(sf bool, lm bool) {
	raw := [3]int64{
		int64(g.mac[1]) + int64(g.ir[1])*int64(g.ir[0]),
		int64(g.mac[2]) + int64(g.ir[2])*int64(g.ir[0]),
		int64(g.mac[3]) + int64(g.ir[3])*int64(g.ir[0]),
	}
	g.macIR(raw, sf, lm)
}

// lightNormal applies the light matrix to a normal vector and then the
// color matrix plus background color, landing the result in IR1..3, spec
// §4.3's description of NCS/NCT/NCCS/NCCT/NCDS/NCDT's shared first stage.
func (g *GTE) lightNormal(v [3]int32, sf bool, lm bool) {
	stage1 := mulMatVec(g.light, v, [3]int32{})
	g.macIR(stage1, sf, lm)

	litNormal := [3]int32{g.ir[1], g.ir[2], g.ir[3]}
	stage2 := mulMatVec(g.color, litNormal, g.bk)
	g.macIR(stage2, sf, lm)
}

// lightColorFromIR runs only the color-matrix stage directly on the current
// IR vector (used by CC/CDP, which skip the normal-lighting stage).
func (g *GTE) lightColorFromIR(sf bool, lm bool) {
	v := [3]int32{g.ir[1], g.ir[2], g.ir[3]}
	raw := mulMatVec(g.color, v, g.bk)
	g.macIR(raw, sf, lm)
}

// modulateRGBC implements the "C" suffix: the lit color is modulated by the
// current RGBC primitive color before the depth-cue/RGB push stage.
func (g *GTE) modulateRGBC(sf bool, lm bool) {
	shift := uint(0)
	if sf {
		shift = 12
	}
	raw := [3]int64{
		(int64(g.rgbc[0]) << 4) * int64(g.ir[1]) >> shift,
		(int64(g.rgbc[1]) << 4) * int64(g.ir[2]) >> shift,
		(int64(g.rgbc[2]) << 4) * int64(g.ir[3]) >> shift,
	}
	for i := 0; i < 3; i++ {
		g.mac[i+1] = int32(raw[i])
		g.ir[i+1] = saturateIR(raw[i], lm)
	}
}

// depthCueFromRGBC implements DPCS/DPCT: treat RGBC as the base color and
// interpolate it toward the far color using IR0, spec §4.3.
func (g *GTE) depthCueFromRGBC(sf bool, lm bool) {
	base := [3]int32{int32(g.rgbc[0]) << 16, int32(g.rgbc[1]) << 16, int32(g.rgbc[2]) << 16}
	g.mac[1], g.mac[2], g.mac[3] = base[0], base[1], base[2]
	g.interpolateFarColor(sf, lm)
}

// interpolateFarColor nudges the current MAC color toward FC by IR0/4096,
// the "D" variants' defining step, spec §4.3.
func (g *GTE) interpolateFarColor(sf bool, lm bool) {
	shift := uint(0)
	if sf {
		shift = 12
	}
	raw := [3]int64{
		int64(g.mac[1]) + ((int64(g.fc[0])<<12 - int64(g.mac[1])) * int64(g.ir[0]) >> 12),
		int64(g.mac[2]) + ((int64(g.fc[1])<<12 - int64(g.mac[2])) * int64(g.ir[0]) >> 12),
		int64(g.mac[3]) + ((int64(g.fc[2])<<12 - int64(g.mac[3])) * int64(g.ir[0]) >> 12),
	}
	for i := 0; i < 3; i++ {
		v := raw[i] >> shift
		g.mac[i+1] = int32(v)
		g.ir[i+1] = saturateIR(v, lm)
	}
}

// interpolateIRFromFarColor implements INTPL: interpolate the current IR
// vector itself toward FC using IR0, spec §4.3.
func (g *GTE) interpolateIRFromFarColor(sf bool, lm bool) {
	g.mac[1], g.mac[2], g.mac[3] = g.ir[1]<<12, g.ir[2]<<12, g.ir[3]<<12
	g.interpolateFarColor(sf, lm)
}
