package wire

import "errors"

// ErrSyntax is returned when a message fails strict JSON validation.
var ErrSyntax = errors.New("wire: invalid JSON syntax")

// Checker is a deterministic pushdown automaton that validates a byte
// stream against the RFC 8259 grammar (strict: no trailing commas, no
// comments, object/array at top level). The mode stack is bounded by the
// capacity given at construction; exceeding it is a syntax error.
type Checker struct {
	state int
	stack []int
	valid bool
}

// Character classes.
const (
	cSpace = iota // space
	cWhite        // other whitespace
	cLCurb        // {
	cRCurb        // }
	cLSqrb        // [
	cRSqrb        // ]
	cColon        // :
	cComma        // ,
	cQuote        // "
	cBacks        // \
	cSlash        // /
	cPlus         // +
	cMinus        // -
	cPoint        // .
	cZero         // 0
	cDigit        // 123456789
	cLowA         // a
	cLowB         // b
	cLowC         // c
	cLowD         // d
	cLowE         // e
	cLowF         // f
	cLowL         // l
	cLowN         // n
	cLowR         // r
	cLowS         // s
	cLowT         // t
	cLowU         // u
	cABCDF        // ABCDF
	cE            // E
	cEtc          // everything else
	nrClasses
)

// asciiClass maps the 128 ASCII codes to character classes. Codes below
// 0x20 (other than the JSON whitespace set) are rejected outright.
var asciiClass = [128]int{
	bad, bad, bad, bad, bad, bad, bad, bad,
	bad, cWhite, cWhite, bad, bad, cWhite, bad, bad,
	bad, bad, bad, bad, bad, bad, bad, bad,
	bad, bad, bad, bad, bad, bad, bad, bad,

	cSpace, cEtc, cQuote, cEtc, cEtc, cEtc, cEtc, cEtc,
	cEtc, cEtc, cEtc, cPlus, cComma, cMinus, cPoint, cSlash,
	cZero, cDigit, cDigit, cDigit, cDigit, cDigit, cDigit, cDigit,
	cDigit, cDigit, cColon, cEtc, cEtc, cEtc, cEtc, cEtc,

	cEtc, cABCDF, cABCDF, cABCDF, cABCDF, cE, cABCDF, cEtc,
	cEtc, cEtc, cEtc, cEtc, cEtc, cEtc, cEtc, cEtc,
	cEtc, cEtc, cEtc, cEtc, cEtc, cEtc, cEtc, cEtc,
	cEtc, cEtc, cEtc, cLSqrb, cBacks, cRSqrb, cEtc, cEtc,

	cEtc, cLowA, cLowB, cLowC, cLowD, cLowE, cLowF, cEtc,
	cEtc, cEtc, cEtc, cEtc, cLowL, cEtc, cLowN, cEtc,
	cEtc, cEtc, cLowR, cLowS, cLowT, cLowU, cEtc, cEtc,
	cEtc, cEtc, cEtc, cLCurb, cEtc, cRCurb, cEtc, cEtc,
}

// Automaton states.
const (
	stGO = iota // start
	stOK        // ok
	stOB        // object
	stKE        // key
	stCO        // colon
	stVA        // value
	stAR        // array
	stST        // string
	stES        // escape
	stU1        // \u1
	stU2        // \u2
	stU3        // \u3
	stU4        // \u4
	stMI        // minus
	stZE        // zero
	stIN        // integer
	stFR        // fraction start (after the point)
	stFS        // fraction digits
	stE1        // e
	stE2        // ex
	stE3        // exp
	stT1        // tr
	stT2        // tru
	stT3        // true
	stF1        // fa
	stF2        // fal
	stF3        // fals
	stF4        // false
	stN1        // nu
	stN2        // nul
	stN3        // null
	nrStates
)

// Actions (negative entries in the transition table).
const (
	bad = -1 // reject
	aEO = -9 // empty }
	aOE = -8 // }
	aAE = -7 // ]
	aOB = -6 // {
	aAB = -5 // [
	aSE = -4 // closing "
	aCM = -3 // ,
	aCL = -2 // :
)

// Container modes pushed on the stack.
const (
	modeArray = iota
	modeDone
	modeKey
	modeObject
)

// stateTransition takes the current state and character class and
// returns either the next state or a (negative) action.
var stateTransition = [nrStates][nrClasses]int{
	/*          sp  ws   {   }   [   ]   :   ,   "   \   /   +   -   .   0  19   a   b   c   d   e   f   l   n   r   s   t   u  AF   E  etc */
	/*GO*/ {stGO, stGO, aOB, bad, aAB, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*OK*/ {stOK, stOK, bad, aOE, bad, aAE, bad, aCM, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*OB*/ {stOB, stOB, bad, aEO, bad, bad, bad, bad, stST, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*KE*/ {stKE, stKE, bad, bad, bad, bad, bad, bad, stST, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*CO*/ {stCO, stCO, bad, bad, bad, bad, aCL, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*VA*/ {stVA, stVA, aOB, bad, aAB, bad, bad, bad, stST, bad, bad, bad, stMI, bad, stZE, stIN, bad, bad, bad, bad, bad, stF1, bad, stN1, bad, bad, stT1, bad, bad, bad, bad},
	/*AR*/ {stAR, stAR, aOB, bad, aAB, aAE, bad, bad, stST, bad, bad, bad, stMI, bad, stZE, stIN, bad, bad, bad, bad, bad, stF1, bad, stN1, bad, bad, stT1, bad, bad, bad, bad},
	/*ST*/ {stST, bad, stST, stST, stST, stST, stST, stST, aSE, stES, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST, stST},
	/*ES*/ {bad, bad, bad, bad, bad, bad, bad, bad, stST, stST, stST, bad, bad, bad, bad, bad, bad, stST, bad, bad, bad, stST, bad, stST, stST, bad, stST, stU1, bad, bad, bad},
	/*U1*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stU2, stU2, stU2, stU2, stU2, stU2, stU2, stU2, bad, bad, bad, bad, bad, bad, stU2, stU2, bad},
	/*U2*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stU3, stU3, stU3, stU3, stU3, stU3, stU3, stU3, bad, bad, bad, bad, bad, bad, stU3, stU3, bad},
	/*U3*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stU4, stU4, stU4, stU4, stU4, stU4, stU4, stU4, bad, bad, bad, bad, bad, bad, stU4, stU4, bad},
	/*U4*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stST, stST, stST, stST, stST, stST, stST, stST, bad, bad, bad, bad, bad, bad, stST, stST, bad},
	/*MI*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stZE, stIN, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*ZE*/ {stOK, stOK, bad, aOE, bad, aAE, bad, aCM, bad, bad, bad, bad, bad, stFR, bad, bad, bad, bad, bad, bad, stE1, bad, bad, bad, bad, bad, bad, bad, bad, stE1, bad},
	/*IN*/ {stOK, stOK, bad, aOE, bad, aAE, bad, aCM, bad, bad, bad, bad, bad, stFR, stIN, stIN, bad, bad, bad, bad, stE1, bad, bad, bad, bad, bad, bad, bad, bad, stE1, bad},
	/*FR*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stFS, stFS, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*FS*/ {stOK, stOK, bad, aOE, bad, aAE, bad, aCM, bad, bad, bad, bad, bad, bad, stFS, stFS, bad, bad, bad, bad, stE1, bad, bad, bad, bad, bad, bad, bad, bad, stE1, bad},
	/*E1*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stE2, stE2, bad, stE3, stE3, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*E2*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stE3, stE3, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*E3*/ {stOK, stOK, bad, aOE, bad, aAE, bad, aCM, bad, bad, bad, bad, bad, bad, stE3, stE3, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*T1*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stT2, bad, bad, bad, bad, bad, bad},
	/*T2*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stT3, bad, bad, bad},
	/*T3*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stOK, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*F1*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stF2, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*F2*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stF3, bad, bad, bad, bad, bad, bad, bad, bad},
	/*F3*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stF4, bad, bad, bad, bad, bad},
	/*F4*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stOK, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad},
	/*N1*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stN2, bad, bad, bad},
	/*N2*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stN3, bad, bad, bad, bad, bad, bad, bad, bad},
	/*N3*/ {bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, bad, stOK, bad, bad, bad, bad, bad, bad, bad, bad},
}

// NewChecker returns a checker whose mode stack holds at most depth
// entries. The framing layer sizes the stack to the message length.
func NewChecker(depth int) *Checker {
	if depth < 1 {
		depth = 1
	}
	c := &Checker{
		state: stGO,
		stack: make([]int, 0, depth),
		valid: true,
	}
	c.push(modeDone)
	return c
}

func (c *Checker) push(mode int) bool {
	if len(c.stack) >= cap(c.stack) {
		return false
	}
	c.stack = append(c.stack, mode)
	return true
}

func (c *Checker) pop(mode int) bool {
	n := len(c.stack)
	if n == 0 || c.stack[n-1] != mode {
		return false
	}
	c.stack = c.stack[:n-1]
	return true
}

func (c *Checker) top() int {
	if len(c.stack) == 0 {
		return -1
	}
	return c.stack[len(c.stack)-1]
}

func (c *Checker) reject() bool {
	c.valid = false
	return false
}

// Feed advances the automaton by one byte. It returns false once the
// input has become invalid; after that the checker stays rejecting.
func (c *Checker) Feed(b byte) bool {
	if !c.valid {
		return false
	}

	var class int
	if b >= 128 {
		class = cEtc // non-ASCII bytes only ever occur inside strings
	} else {
		class = asciiClass[b]
		if class == bad {
			return c.reject()
		}
	}

	next := stateTransition[c.state][class]
	if next >= 0 {
		c.state = next
		return true
	}

	switch next {
	case aEO: // empty }
		if !c.pop(modeKey) {
			return c.reject()
		}
		c.state = stOK
	case aOE: // }
		if !c.pop(modeObject) {
			return c.reject()
		}
		c.state = stOK
	case aAE: // ]
		if !c.pop(modeArray) {
			return c.reject()
		}
		c.state = stOK
	case aOB: // {
		if !c.push(modeKey) {
			return c.reject()
		}
		c.state = stOB
	case aAB: // [
		if !c.push(modeArray) {
			return c.reject()
		}
		c.state = stAR
	case aSE: // closing quote
		switch c.top() {
		case modeKey:
			c.state = stCO
		case modeArray, modeObject, modeDone:
			c.state = stOK
		default:
			return c.reject()
		}
	case aCM: // ,
		switch c.top() {
		case modeObject:
			if !c.pop(modeObject) || !c.push(modeKey) {
				return c.reject()
			}
			c.state = stKE
		case modeArray:
			c.state = stVA
		default:
			return c.reject()
		}
	case aCL: // :
		if !c.pop(modeKey) || !c.push(modeObject) {
			return c.reject()
		}
		c.state = stVA
	default:
		return c.reject()
	}
	return true
}

// Done reports whether the input consumed so far forms exactly one
// complete JSON document.
func (c *Checker) Done() bool {
	return c.valid && c.state == stOK && c.pop(modeDone)
}

// Check validates a complete message in one call.
func Check(data []byte) error {
	c := NewChecker(len(data))
	for _, b := range data {
		if !c.Feed(b) {
			return ErrSyntax
		}
	}
	if !c.Done() {
		return ErrSyntax
	}
	return nil
}
