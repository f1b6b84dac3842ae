package ledger

// Account holds the tower's funds. Deltas are signed: negative for a
// cost, positive for a refund or income.
type Account struct {
	balance int64
}

func NewAccount(balance int64) *Account {
	return &Account{balance: balance}
}

func (a *Account) Balance() int64 { return a.balance }

func (a *Account) CanAfford(cost int64) bool {
	return cost <= 0 || a.balance >= cost
}

func (a *Account) Apply(delta int64) { a.balance += delta }

// Command is a reversible, priced mutation. Execute and Undo report
// failure by returning false and must leave all state untouched when
// they do. CostChange is fixed for the command's lifetime: negative for
// a cost, positive for a refund.
type Command interface {
	Execute() bool
	Undo() bool
	Description() string
	CostChange() int64
}

type entry struct {
	cmd        Command
	desc       string
	costChange int64
}

// Ledger wraps paid mutations in bounded undo/redo stacks and keeps the
// account consistent with them. Every operation is all-or-nothing: on
// any failure funds and both stacks are untouched.
type Ledger struct {
	undo       []entry
	redo       []entry
	maxHistory int
}

const DefaultMaxHistory = 50

func New(maxHistory int) *Ledger {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &Ledger{maxHistory: maxHistory}
}

// Execute runs a command, charges the account and records the command
// for undo. The redo stack is cleared on success.
func (l *Ledger) Execute(cmd Command, acct *Account) bool {
	cost := cmd.CostChange()
	if cost < 0 && !acct.CanAfford(-cost) {
		return false
	}
	if !cmd.Execute() {
		return false
	}
	acct.Apply(cost)
	l.undo = push(l.undo, entry{cmd: cmd, desc: cmd.Description(), costChange: cost}, l.maxHistory)
	l.redo = nil
	return true
}

// Undo reverses the most recent command, applying the inverse fund
// delta. Undoing a demolition re-pays its refund, so it can fail on
// insufficient funds just like an execute.
func (l *Ledger) Undo(acct *Account) bool {
	if len(l.undo) == 0 {
		return false
	}
	top := l.undo[len(l.undo)-1]
	inverse := -top.costChange
	if inverse < 0 && !acct.CanAfford(-inverse) {
		return false
	}
	if !top.cmd.Undo() {
		return false
	}
	acct.Apply(inverse)
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = push(l.redo, top, l.maxHistory)
	return true
}

// Redo re-executes the most recently undone command. Mirrors Execute,
// except the redo stack is popped rather than cleared.
func (l *Ledger) Redo(acct *Account) bool {
	if len(l.redo) == 0 {
		return false
	}
	top := l.redo[len(l.redo)-1]
	if top.costChange < 0 && !acct.CanAfford(-top.costChange) {
		return false
	}
	if !top.cmd.Execute() {
		return false
	}
	acct.Apply(top.costChange)
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = push(l.undo, top, l.maxHistory)
	return true
}

func push(stack []entry, e entry, max int) []entry {
	stack = append(stack, e)
	if len(stack) > max {
		// Evict the oldest entry; its command can no longer be undone.
		copy(stack, stack[1:])
		stack = stack[:len(stack)-1]
	}
	return stack
}

func (l *Ledger) CanUndo() bool { return len(l.undo) > 0 }
func (l *Ledger) CanRedo() bool { return len(l.redo) > 0 }

func (l *Ledger) UndoDepth() int { return len(l.undo) }
func (l *Ledger) RedoDepth() int { return len(l.redo) }

// UndoDescription names the command Undo would reverse, or "".
func (l *Ledger) UndoDescription() string {
	if len(l.undo) == 0 {
		return ""
	}
	return l.undo[len(l.undo)-1].desc
}

// RedoDescription names the command Redo would re-run, or "".
func (l *Ledger) RedoDescription() string {
	if len(l.redo) == 0 {
		return ""
	}
	return l.redo[len(l.redo)-1].desc
}

// UndoCostChange reports the funds delta Undo would apply, or 0.
func (l *Ledger) UndoCostChange() int64 {
	if len(l.undo) == 0 {
		return 0
	}
	return -l.undo[len(l.undo)-1].costChange
}

// RedoCostChange reports the funds delta Redo would apply, or 0.
func (l *Ledger) RedoCostChange() int64 {
	if len(l.redo) == 0 {
		return 0
	}
	return l.redo[len(l.redo)-1].costChange
}

// Clear drops both stacks. Used after loading a snapshot; command
// history is never persisted.
func (l *Ledger) Clear() {
	l.undo = nil
	l.redo = nil
}
