package challenge

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Kind selects the captcha mechanism presented to a new member. The
// string values are the wire names used in config and commands.
type Kind string

const (
	Button        Kind = "button"
	Arithmetic    Kind = "math"
	ChoiceSet     Kind = "fruits"
	ImageSequence Kind = "image"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Button, Arithmetic, ChoiceSet, ImageSequence:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown captcha kind %q, expected button, math, fruits or image", s)
	}
}

func Kinds() []Kind {
	return []Kind{Button, Arithmetic, ChoiceSet, ImageSequence}
}

var fruitPool = []string{
	"🍎", "🍌", "🍇", "🍓", "🍍",
	"🥭", "🥝", "🍑", "🍒", "🍉",
	"🍋", "🍈", "🍐", "🍊", "🍏",
	"🥥", "🍅",
}

const (
	codeLength  = 5
	codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Payload is one generated challenge. Which fields are populated
// depends on the kind.
type Payload struct {
	Kind Kind

	// Token is the opaque acknowledgment value of a Button challenge.
	Token string

	// Prompt is the question text for Arithmetic ("7 + 5 = ?").
	Prompt string

	// Answer is the canonical correct answer: the sum as decimal text,
	// the correct symbol, or the full image code.
	Answer string

	// Options are the selectable choices in display order.
	Options []string

	// Code is the character sequence embedded in Image.
	Code string

	// Image is the rendered PNG for ImageSequence.
	Image []byte
}

// Generate produces a challenge payload of the requested kind using
// the supplied entropy source. It has no side effects on shared state.
func Generate(kind Kind, rng *rand.Rand) (*Payload, error) {
	switch kind {
	case Button:
		return newButton(), nil
	case Arithmetic:
		return newArithmetic(rng), nil
	case ChoiceSet:
		return newChoiceSet(rng)
	case ImageSequence:
		return newImageSequence(rng)
	default:
		return nil, fmt.Errorf("unknown captcha kind %q", kind)
	}
}

func newButton() *Payload {
	return &Payload{
		Kind:  Button,
		Token: uuid.NewString(),
	}
}

func newArithmetic(rng *rand.Rand) *Payload {
	a := rng.Intn(20) + 1
	b := rng.Intn(20) + 1

	op := "+"
	if rng.Intn(2) == 1 {
		op = "-"
		// Redraw ties and order the operands so the answer stays
		// positive without leaving the 1..20 range.
		for a == b {
			b = rng.Intn(20) + 1
		}
		if a < b {
			a, b = b, a
		}
	}

	answer := a + b
	if op == "-" {
		answer = a - b
	}

	options := decoyOptions(answer, rng)
	labels := make([]string, len(options))
	for i, v := range options {
		labels[i] = strconv.Itoa(v)
	}

	return &Payload{
		Kind:    Arithmetic,
		Prompt:  fmt.Sprintf("%d %s %d = ?", a, op, b),
		Answer:  strconv.Itoa(answer),
		Options: labels,
	}
}

// decoyOptions returns the correct answer plus three distinct positive
// decoys near it, shuffled. Perturbation starts at ±3 and widens after
// repeated collisions so generation always terminates, even for small
// answers where few positive neighbours exist.
func decoyOptions(answer int, rng *rand.Rand) []int {
	picked := map[int]struct{}{answer: {}}

	spread := 3
	attempts := 0
	for len(picked) < 4 {
		delta := rng.Intn(2*spread+1) - spread
		v := answer + delta
		if delta != 0 && v > 0 {
			picked[v] = struct{}{}
		}

		attempts++
		if attempts >= 32 {
			spread += 3
			attempts = 0
		}
	}

	options := make([]int, 0, len(picked))
	for v := range picked {
		options = append(options, v)
	}
	sort.Ints(options)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

func newChoiceSet(rng *rand.Rand) (*Payload, error) {
	if len(fruitPool) < 4 {
		return nil, fmt.Errorf("symbol pool too small: have %d, need 4", len(fruitPool))
	}

	perm := rng.Perm(len(fruitPool))
	options := make([]string, 4)
	for i := range options {
		options[i] = fruitPool[perm[i]]
	}

	return &Payload{
		Kind:    ChoiceSet,
		Answer:  options[rng.Intn(len(options))],
		Options: options,
	}, nil
}

func newImageSequence(rng *rand.Rand) (*Payload, error) {
	code := newCode(rng, codeLength)

	img, err := RenderImage(code, DefaultImageOptions(), rng)
	if err != nil {
		return nil, fmt.Errorf("rendering captcha image: %w", err)
	}

	chars := []rune(code)
	options := make([]string, len(chars))
	for i, j := range rng.Perm(len(chars)) {
		options[i] = string(chars[j])
	}

	return &Payload{
		Kind:    ImageSequence,
		Answer:  code,
		Options: options,
		Code:    code,
		Image:   img,
	}, nil
}

func newCode(rng *rand.Rand, length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = codeCharset[rng.Intn(len(codeCharset))]
	}
	return string(out)
}
