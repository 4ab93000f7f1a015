package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxLogLines caps the log lines kept per transaction.
const MaxLogLines = 1000

type logCollector struct {
	lines     []string
	truncated bool
}

func (l *logCollector) add(line string) {
	if l.truncated {
		return
	}
	if len(l.lines) >= MaxLogLines {
		l.lines = append(l.lines, "Log truncated")
		l.truncated = true
		return
	}
	l.lines = append(l.lines, line)
}

func (l *logCollector) invoke(program solana.PublicKey, depth int) {
	l.add(fmt.Sprintf("Program %s invoke [%d]", program, depth))
}

func (l *logCollector) success(program solana.PublicKey) {
	l.add(fmt.Sprintf("Program %s success", program))
}

func (l *logCollector) failed(program solana.PublicKey, err error) {
	l.add(fmt.Sprintf("Program %s failed: %s", program, failureText(err)))
}

func (l *logCollector) programLog(msg string) {
	l.add("Program log: " + msg)
}
