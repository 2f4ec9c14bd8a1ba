package risk

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance is the reason recorded when the account total is not positive.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Violation codes.
const (
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodePositionRiskTooHigh   = "POSITION_RISK_TOO_HIGH"
	CodePortfolioRiskTooHigh  = "PORTFOLIO_RISK_TOO_HIGH"
	CodeTooManyOpenPositions  = "TOO_MANY_OPEN_POSITIONS"
	CodeTradeTooSmall         = "TRADE_TOO_SMALL"
	CodeTradeTooLarge         = "TRADE_TOO_LARGE"
	CodeInsufficientAvailable = "INSUFFICIENT_AVAILABLE"
	CodeDailyLossLimit        = "DAILY_LOSS_LIMIT"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Decision is the gate's verdict. A rejected decision carries the violation
// that failed first.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	PotentialLoss    float64 `json:"potential_loss,omitempty"`
	PositionRiskPct  float64 `json:"position_risk_pct,omitempty"`
	PortfolioRiskPct float64 `json:"portfolio_risk_pct,omitempty"`
}

func admit() Decision {
	return Decision{Allowed: true}
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason is the human-readable rejection reason, empty when allowed.
func (d Decision) Reason() string {
	if d.Allowed || len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Msg
}

// Code is the first violation code, empty when allowed.
func (d Decision) Code() string {
	if d.Allowed || len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

func reject(code string, format string, args ...any) Decision {
	d := Decision{}
	d.add(code, fmt.Sprintf(format, args...))
	return d
}
