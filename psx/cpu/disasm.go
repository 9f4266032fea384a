package cpu

import "fmt"

// regNames are the conventional MIPS ABI register names, used by Disassemble
// for debug terminal output.
var regNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// Disassemble renders one instruction word as a MIPS mnemonic string, for
// the debug terminal backend. Grounded on go-jeebie's jeebie/disasm package
// (a single-instruction-to-string renderer consumed by a debug UI).
func Disassemble(pc uint32, word uint32) string {
	in := decode(word)
	rs, rt, rd := regNames[in.rs], regNames[in.rt], regNames[in.rd]

	switch in.op {
	case 0x00:
		switch in.funct {
		case 0x00:
			if word == 0 {
				return "nop"
			}
			return fmt.Sprintf("sll %s, %s, %d", rd, rt, in.shamt)
		case 0x02:
			return fmt.Sprintf("srl %s, %s, %d", rd, rt, in.shamt)
		case 0x03:
			return fmt.Sprintf("sra %s, %s, %d", rd, rt, in.shamt)
		case 0x08:
			return fmt.Sprintf("jr %s", rs)
		case 0x09:
			return fmt.Sprintf("jalr %s, %s", rd, rs)
		case 0x0C:
			return "syscall"
		case 0x0D:
			return "break"
		case 0x20:
			return fmt.Sprintf("add %s, %s, %s", rd, rs, rt)
		case 0x21:
			return fmt.Sprintf("addu %s, %s, %s", rd, rs, rt)
		case 0x24:
			return fmt.Sprintf("and %s, %s, %s", rd, rs, rt)
		case 0x25:
			return fmt.Sprintf("or %s, %s, %s", rd, rs, rt)
		case 0x2A:
			return fmt.Sprintf("slt %s, %s, %s", rd, rs, rt)
		case 0x2B:
			return fmt.Sprintf("sltu %s, %s, %s", rd, rs, rt)
		default:
			return fmt.Sprintf(".word 0x%08x (special funct 0x%02x)", word, in.funct)
		}
	case 0x02:
		return fmt.Sprintf("j 0x%08x", (pc&0xF000_0000)|(in.jidx<<2))
	case 0x03:
		return fmt.Sprintf("jal 0x%08x", (pc&0xF000_0000)|(in.jidx<<2))
	case 0x04:
		return fmt.Sprintf("beq %s, %s, %d", rs, rt, in.simm)
	case 0x05:
		return fmt.Sprintf("bne %s, %s, %d", rs, rt, in.simm)
	case 0x08:
		return fmt.Sprintf("addi %s, %s, %d", rt, rs, in.simm)
	case 0x09:
		return fmt.Sprintf("addiu %s, %s, %d", rt, rs, in.simm)
	case 0x0C:
		return fmt.Sprintf("andi %s, %s, 0x%x", rt, rs, in.imm)
	case 0x0D:
		return fmt.Sprintf("ori %s, %s, 0x%x", rt, rs, in.imm)
	case 0x0F:
		return fmt.Sprintf("lui %s, 0x%x", rt, in.imm)
	case 0x10:
		return fmt.Sprintf("cop0 0x%08x", word)
	case 0x12:
		return fmt.Sprintf("cop2 0x%08x", word)
	case 0x20:
		return fmt.Sprintf("lb %s, %d(%s)", rt, in.simm, rs)
	case 0x23:
		return fmt.Sprintf("lw %s, %d(%s)", rt, in.simm, rs)
	case 0x28:
		return fmt.Sprintf("sb %s, %d(%s)", rt, in.simm, rs)
	case 0x2B:
		return fmt.Sprintf("sw %s, %d(%s)", rt, in.simm, rs)
	default:
		return fmt.Sprintf(".word 0x%08x (op 0x%02x)", word, in.op)
	}
}
