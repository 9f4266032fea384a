package spu

// ADSR phase identifiers, spec §4.6 "Four phases A, D, S, R plus OFF".
type adsrPhase int

const (
	adsrAttack adsrPhase = iota
	adsrDecay
	adsrSustain
	adsrRelease
	adsrOff
)

// envelope implements the ADSR rate/step/target state machine of spec §4.6.
// Bit layout for ADSR1/ADSR2 follows the standard PS1 SPU register format
// (spec.md describes the rate/direction/mode/target semantics but not the
// exact bit positions; this layout is the well-known ecosystem convention,
// recorded as an Open Question decision in DESIGN.md):
//
//	ADSR1: bits0-3 sustain level, bits4-7 decay rate (always exponential
//	decrease), bits8-14 attack rate, bit15 attack mode (0=linear,1=exp).
//	ADSR2: bits0-4 release rate, bit5 release mode, bits6-12 sustain rate,
//	bit13 sustain direction (0=inc,1=dec), bit14 sustain mode.
type envelope struct {
	adsr1, adsr2 uint16

	phase adsrPhase
	level int32 // 0..0x7FFF

	counter int32
	target  int32
}

func (e *envelope) sustainLevel() int32 {
	return int32((e.adsr1&0xF)+1) * 0x800
}

func (e *envelope) attackRate() (rate uint8, exp bool) {
	return uint8((e.adsr1 >> 8) & 0x7F), e.adsr1&0x8000 != 0
}

func (e *envelope) decayRate() uint8 {
	return uint8((e.adsr1 >> 4) & 0xF)
}

func (e *envelope) sustainRate() (rate uint8, decreasing bool, exp bool) {
	return uint8((e.adsr2 >> 6) & 0x7F), e.adsr2&(1<<13) != 0, e.adsr2&(1<<14) != 0
}

func (e *envelope) releaseRate() (rate uint8, exp bool) {
	return uint8(e.adsr2 & 0x1F), e.adsr2&(1<<5) != 0
}

// rateToStep implements spec §4.6's rate-to-(step, counter_increment)
// mapping.
func rateToStep(rate uint8, decreasing bool) (step int32, counterInc int32) {
	baseStep := int32(7 - (rate & 3))
	if decreasing {
		step = -(baseStep + 1)
	} else {
		step = baseStep
	}
	counterInc = 0x8000
	switch {
	case rate < 44:
		step <<= uint(11 - (rate >> 2))
	case rate >= 48:
		shift := uint((rate >> 2) - 11)
		if shift > 15 {
			shift = 15
		}
		counterInc >>= shift
	}
	return step, counterInc
}

// keyOn resets the envelope into the attack phase, spec §4.6/§4.7 "key_on".
func (e *envelope) keyOn() {
	e.phase = adsrAttack
	e.level = 0
	e.counter = 0
}

// keyOff moves the envelope into the release phase.
func (e *envelope) keyOff() {
	e.phase = adsrRelease
	e.counter = 0
}

// tick advances the envelope by one sample period, spec §4.6 "ADSR envelope".
func (e *envelope) tick() {
	if e.phase == adsrOff {
		return
	}

	rate, exp, decreasing, target := e.currentPhaseParams()
	step, counterInc := rateToStep(rate, decreasing)

	if exp {
		if decreasing {
			step = int32((int64(step) * int64(e.level)) >> 15)
		} else if e.level >= 0x6000 {
			// Exponential attack curve flattens above 3/4 scale; approximate
			// the real hardware's rate-band halving/quartering with a flat
			// quarter-step once past the knee (spec §4.6 names the behavior
			// qualitatively without exact band boundaries).
			step /= 4
			if step == 0 {
				step = 1
			}
		}
	}

	e.counter += counterInc
	if e.counter&0x8000 == 0 {
		return
	}
	e.counter &= 0x7FFF
	e.level += step

	switch e.phase {
	case adsrAttack:
		if e.level >= 0x7FFF {
			e.level = 0x7FFF
			e.phase = adsrDecay
			e.counter = 0
		}
	case adsrDecay:
		if e.level <= target {
			e.level = target
			e.phase = adsrSustain
			e.counter = 0
		}
	case adsrSustain:
		// free-running, per spec §4.6.
	case adsrRelease:
		if e.level <= 0 {
			e.level = 0
			e.phase = adsrOff
		}
	}

	if e.level < 0 {
		e.level = 0
	}
	if e.level > 0x7FFF {
		e.level = 0x7FFF
	}
}

func (e *envelope) currentPhaseParams() (rate uint8, exp bool, decreasing bool, target int32) {
	switch e.phase {
	case adsrAttack:
		rate, exp = e.attackRate()
		return rate, exp, false, 0x7FFF
	case adsrDecay:
		return e.decayRate(), true, true, e.sustainLevel()
	case adsrSustain:
		rate, decreasing, exp := e.sustainRate()
		return rate, exp, decreasing, 0
	case adsrRelease:
		rate, exp := e.releaseRate()
		return rate, exp, true, 0
	default:
		return 0, false, false, 0
	}
}
