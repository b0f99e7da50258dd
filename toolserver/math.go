package toolserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
)

// Pair holds the operands of binary tools.
type Pair struct {
	A int64 `json:"a" jsonschema:"description=First number"`
	B int64 `json:"b" jsonschema:"description=Second number"`
}

// Number holds the operand of unary tools.
type Number struct {
	A int64 `json:"a" jsonschema:"description=A natural number"`
}

// List holds the operand of list tools.
type List struct {
	A []int64 `json:"a" jsonschema:"description=A list of natural numbers"`
}

// ErrEmptyList is returned when summing an empty list.
var ErrEmptyList = errors.New("list is empty")

// Digits returns the decimal digits of n, most significant first.
// Zero and negative numbers have no digits.
func Digits(n int64) []int64 {
	var digits []int64
	for n > 0 {
		digits = append([]int64{n % 10}, digits...)
		n /= 10
	}
	return digits
}

// Sum adds the numbers of a non-empty list.
func Sum(list []int64) (int64, error) {
	if len(list) == 0 {
		return 0, ErrEmptyList
	}
	var sum int64
	for _, n := range list {
		sum += n
	}
	return sum, nil
}

func text(n int64) *mcp.CallToolResult {
	return mcp.NewToolResultText(strconv.FormatInt(n, 10))
}

// MathTools returns the arithmetic tools.
func MathTools() []ITool {
	return []ITool{
		NewTool("add",
			"Given two numbers, return the sum of the two numbers",
			func(_ context.Context, p *Pair) (*mcp.CallToolResult, error) {
				return text(p.A + p.B), nil
			}),
		NewTool("can_I_listify_a_number",
			"Given a number, check if it can be further listified",
			func(_ context.Context, n *Number) (*mcp.CallToolResult, error) {
				if n.A > 9 {
					return mcp.NewToolResultText(fmt.Sprintf(
						"%d can be converted into a list of digits since there are more than 1 digits in the number", n.A)), nil
				}
				return mcp.NewToolResultText(fmt.Sprintf(
					"%d cannot be converted into a list of digits since only the unit's place is filled", n.A)), nil
			}),
		NewTool("listify_number",
			"Given a number, convert it to a list of its digits",
			func(_ context.Context, n *Number) (*mcp.CallToolResult, error) {
				digits := Digits(n.A)
				res := &mcp.CallToolResult{Content: make([]mcp.Content, 0, len(digits))}
				for _, d := range digits {
					res.Content = append(res.Content, mcp.NewTextContent(strconv.FormatInt(d, 10)))
				}
				return res, nil
			}),
		NewTool("summify_list",
			"Given a list of natural numbers, sum the numbers and return the result",
			func(_ context.Context, l *List) (*mcp.CallToolResult, error) {
				sum, err := Sum(l.A)
				if err != nil {
					return nil, err
				}
				return text(sum), nil
			}),
		NewTool("subtract",
			"Given two numbers, return the difference of the two numbers (second deducted from the first)",
			func(_ context.Context, p *Pair) (*mcp.CallToolResult, error) {
				return text(p.A - p.B), nil
			}),
		NewTool("check_integer_equality",
			"Given two numbers, compare if the two numbers are equal or not",
			func(_ context.Context, p *Pair) (*mcp.CallToolResult, error) {
				if p.A == p.B {
					return mcp.NewToolResultText(fmt.Sprintf("%d and %d are exactly the same", p.A, p.B)), nil
				}
				return mcp.NewToolResultText(fmt.Sprintf("%d and %d are not the same", p.A, p.B)), nil
			}),
	}
}
