// File: internal/dispatch/opcode.go
// Package dispatch maps XenStore wire opcodes to handlers, per spec
// §4.4. The opcode table is a static array indexed by opcode (the
// teacher's §9 "static table" dispatch option), grounded on the
// const-block idiom of core/protocol/constants.go.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package dispatch

// Opcode numbers match the real XenStore wire protocol, cross-checked
// against the retrieved unikraft-kraftkit xenstore client (WatchOp=4,
// UnwatchOp=5, WatchEvent=15, Error=16).
type Opcode uint32

const (
	OpControl              Opcode = 0
	OpDirectory             Opcode = 1
	OpRead                  Opcode = 2
	OpGetPerms              Opcode = 3
	OpWatch                 Opcode = 4
	OpUnwatch               Opcode = 5
	OpTransactionStart      Opcode = 6
	OpTransactionEnd        Opcode = 7
	OpIntroduce             Opcode = 8
	OpRelease               Opcode = 9
	OpGetDomainPath         Opcode = 10
	OpWrite                 Opcode = 11
	OpMkdir                 Opcode = 12
	OpRm                    Opcode = 13
	OpSetPerms              Opcode = 14
	OpWatchEvent            Opcode = 15
	OpError                 Opcode = 16
	OpIsDomainIntroduced    Opcode = 17
	OpResume                Opcode = 18
	OpSetTarget             Opcode = 19
	OpRestrict              Opcode = 20
	OpResetWatches          Opcode = 21
	OpDirectoryPart         Opcode = 22

	numOpcodes = 23
)
