package builtins

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/askr-bot/askr/internal/plugins"
)

func init() {
	plugins.RegisterBuiltin("dice", plugins.Manifest{
		"MESSAGE_GROUP_BOT": "DiceRoll",
	}, map[string]plugins.HandlerFunc{
		"DiceRoll": diceRoll,
	})
}

var dicePattern = regexp.MustCompile(`^(\d*)d(\d+)$`)

// diceRoll answers "<command-prefix>r NdM" commands with a die-roll result,
// returning nil (no reply) for anything else.
func diceRoll(ctx *plugins.HandlerContext) (any, error) {
	if ctx.SimpleEvent == nil {
		return nil, nil
	}
	fields := strings.Fields(strings.TrimLeft(ctx.SimpleEvent.TextMessage, "./\\"))
	if len(fields) < 2 || fields[0] != "r" {
		return nil, nil
	}

	match := dicePattern.FindStringSubmatch(fields[1])
	if match == nil {
		return "invalid dice expression, expected NdM", nil
	}

	count := 1
	if match[1] != "" {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > 100 {
			return "dice count must be between 1 and 100", nil
		}
		count = n
	}
	sides, err := strconv.Atoi(match[2])
	if err != nil || sides < 2 || sides > 1000 {
		return "die sides must be between 2 and 1000", nil
	}

	total := 0
	rolls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(sides)))
		if err != nil {
			return nil, fmt.Errorf("dice: random roll: %w", err)
		}
		roll := int(n.Int64()) + 1
		total += roll
		rolls = append(rolls, strconv.Itoa(roll))
	}

	return fmt.Sprintf("rolled %dd%d: [%s] = %d", count, sides, strings.Join(rolls, ", "), total), nil
}
