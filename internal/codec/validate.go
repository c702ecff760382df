package codec

import (
	"github.com/hyperengineering/daybook/internal/types"
	"github.com/hyperengineering/daybook/internal/validation"
)

// Validate checks an entry's fields and returns every violation found, not
// just the first. A nil slice means the entry is valid.
func Validate(e types.Entry) []validation.ValidationError {
	var c validation.Collector

	c.Add(validation.ValidateDate("date", e.Date))
	c.Add(validation.ValidateScore("score", e.Scores.Score))
	c.Add(validation.ValidateScore("discipline", e.Scores.Discipline))
	c.Add(validation.ValidateScore("focus", e.Scores.Focus))
	c.Add(validation.ValidateScore("energy", e.Scores.Energy))
	c.Add(validation.ValidateScore("mood", e.Scores.Mood))
	c.Add(validation.ValidateFinite("net_worth_delta", e.NetWorthDelta))

	for id, text := range e.Sections {
		c.Add(validation.ValidateUTF8(id.String(), text))
		c.Add(validation.ValidateNoNullBytes(id.String(), text))
	}

	return c.Errors()
}
