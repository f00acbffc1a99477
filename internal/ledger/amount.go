package ledger

import (
	"math"
	"strings"
)

// Amount 最小货币单位金额
type Amount uint64

// MaxAmount 金额上限，保证能存入有符号64位列
const MaxAmount Amount = math.MaxInt64

// Add 溢出检查的加法
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a || sum > MaxAmount {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// Sub 下溢检查的减法
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrInsufficientFunds
	}
	return a - b, nil
}

// Address 账户标识，核心层不解析其内部结构
type Address string

// IsZero 判断地址是否为空
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string {
	return string(a)
}
