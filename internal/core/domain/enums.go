package domain

import "fmt"

// Reliability of a subscription.
type Reliability uint8

const (
	BestEffort Reliability = iota
	Reliable
)

func (r Reliability) Valid() bool { return r <= Reliable }

func (r Reliability) String() string {
	switch r {
	case BestEffort:
		return "best_effort"
	case Reliable:
		return "reliable"
	default:
		return fmt.Sprintf("reliability(%d)", uint8(r))
	}
}

// SubMode is the delivery mode of a subscription.
type SubMode uint8

const (
	Push SubMode = iota
	Pull
)

func (m SubMode) Valid() bool { return m <= Pull }

func (m SubMode) String() string {
	switch m {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// QueryTarget selects which queryables a query is routed to.
type QueryTarget uint8

const (
	TargetBestMatching QueryTarget = iota
	TargetAll
	TargetAllComplete
)

func (t QueryTarget) Valid() bool { return t <= TargetAllComplete }

func (t QueryTarget) String() string {
	switch t {
	case TargetBestMatching:
		return "best_matching"
	case TargetAll:
		return "all"
	case TargetAllComplete:
		return "all_complete"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

// ConsolidationMode controls how replies to a query are merged.
type ConsolidationMode uint8

const (
	ConsolidationNone ConsolidationMode = iota
	ConsolidationMonotonic
	ConsolidationLatest
)

func (c ConsolidationMode) Valid() bool { return c <= ConsolidationLatest }

func (c ConsolidationMode) String() string {
	switch c {
	case ConsolidationNone:
		return "none"
	case ConsolidationMonotonic:
		return "monotonic"
	case ConsolidationLatest:
		return "latest"
	default:
		return fmt.Sprintf("consolidation(%d)", uint8(c))
	}
}

// ReplyTag distinguishes data replies from the final marker.
type ReplyTag uint8

const (
	ReplyData ReplyTag = iota
	ReplyFinal
)

func (t ReplyTag) Valid() bool { return t <= ReplyFinal }

func (t ReplyTag) String() string {
	switch t {
	case ReplyData:
		return "data"
	case ReplyFinal:
		return "final"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// SampleKind is the kind of change a sample carries.
type SampleKind uint8

const (
	KindPut SampleKind = iota
	KindDelete
)

func (k SampleKind) Valid() bool { return k <= KindDelete }

func (k SampleKind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EncodingPrefix is the well-known part of a payload encoding.
type EncodingPrefix uint8

const (
	EncodingEmpty EncodingPrefix = iota
	EncodingAppOctetStream
	EncodingAppCustom
	EncodingTextPlain
	EncodingAppProperties
	EncodingAppJSON
	EncodingAppSQL
	EncodingAppInteger
	EncodingAppFloat
	EncodingAppXML
	EncodingAppXHTMLXML
	EncodingAppXWWWFormURLEncoded
	EncodingTextJSON
	EncodingTextHTML
	EncodingTextXML
	EncodingTextCSS
	EncodingTextCSV
	EncodingTextJavascript
	EncodingImageJPEG
	EncodingImagePNG
	EncodingImageGIF

	// MaxEncodingPrefix is the highest known prefix.
	MaxEncodingPrefix = EncodingImageGIF
)

func (p EncodingPrefix) Valid() bool { return p <= MaxEncodingPrefix }
