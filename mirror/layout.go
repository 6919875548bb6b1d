package mirror

import (
	"fmt"

	"github.com/phanxgames/lantern"
)

// Tag identifies the shape of a buffer struct. It is stored in word 0 so
// the worker can pick the layout and node kind without a message field.
type Tag uint64

const (
	TagNode     Tag = 0x4c4e4f44 // "LNOD"
	TagTextNode Tag = 0x4c545854 // "LTXT"
)

func (t Tag) String() string {
	switch t {
	case TagNode:
		return "node"
	case TagTextNode:
		return "textNode"
	default:
		return fmt.Sprintf("Tag(%#x)", uint64(t))
	}
}

// Header words precede the fields of every buffer struct.
const (
	wordTag   = 0
	wordLock  = 1
	wordDirty = 2

	headerWords = 3
)

// maxFields is the number of fields the dirty bitmask can track.
const maxFields = 64

// Field indexes a field of a layout. Its bit in the dirty mask is 1<<Field.
type Field uint8

// Plain node fields. The first block matches lantern.Prop one to one.
const (
	FieldX Field = iota
	FieldY
	FieldWidth
	FieldHeight
	FieldScaleX
	FieldScaleY
	FieldRotation
	FieldMountX
	FieldMountY
	FieldPivotX
	FieldPivotY
	FieldAlpha
	FieldZIndex

	FieldColorTl
	FieldColorTr
	FieldColorBl
	FieldColorBr

	FieldClipping
	FieldContainBounds
	FieldZIndexLocked
	FieldAutosize
	FieldRTT
	FieldFlipX
	FieldFlipY

	FieldSrcX
	FieldSrcY
	FieldSrcWidth
	FieldSrcHeight
	FieldHasSrc

	FieldTexture // texture handle ID, 0 for none
	FieldShader  // shader handle ID, 0 for none

	numNodeFields
)

// Text node fields follow the plain node fields.
const (
	FieldFontSize Field = numNodeFields + iota
	FieldMaxWidth
	FieldMaxHeight
	FieldMaxLines
	FieldTextAlign
	FieldContain
	FieldLetterSpacing
	FieldLineHeight

	numTextNodeFields
)

// FieldKind is how a field's 64 bits are interpreted.
type FieldKind uint8

const (
	KindFloat FieldKind = iota // math.Float64bits
	KindInt                    // two's complement int64
	KindBool                   // 0 or 1
	KindColor                  // lantern.Color in the low 32 bits
	KindID                     // handle ID
)

func (k FieldKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindColor:
		return "color"
	case KindID:
		return "id"
	default:
		return "unknown"
	}
}

// FieldDef describes one field of a layout.
type FieldDef struct {
	Name string
	Kind FieldKind
	Word int // word offset in the buffer
}

// Layout is the fixed shape of a buffer struct: a tag, the node kind it
// mirrors and the word offset of every field.
type Layout struct {
	Tag    Tag
	Kind   lantern.NodeKind
	Fields []FieldDef
}

// Words returns the buffer size in 64-bit words, header included.
func (l *Layout) Words() int { return headerWords + len(l.Fields) }

// Field returns the field with the given name.
func (l *Layout) Field(name string) (Field, bool) {
	for i, f := range l.Fields {
		if f.Name == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Has reports whether f belongs to the layout.
func (l *Layout) Has(f Field) bool { return int(f) < len(l.Fields) }

type fieldSpec struct {
	name string
	kind FieldKind
}

var nodeFieldDefs = []fieldSpec{
	{"x", KindFloat}, {"y", KindFloat}, {"width", KindFloat}, {"height", KindFloat},
	{"scaleX", KindFloat}, {"scaleY", KindFloat}, {"rotation", KindFloat},
	{"mountX", KindFloat}, {"mountY", KindFloat}, {"pivotX", KindFloat}, {"pivotY", KindFloat},
	{"alpha", KindFloat}, {"zIndex", KindInt},
	{"colorTl", KindColor}, {"colorTr", KindColor}, {"colorBl", KindColor}, {"colorBr", KindColor},
	{"clipping", KindBool}, {"containBounds", KindBool}, {"zIndexLocked", KindBool},
	{"autosize", KindBool}, {"rtt", KindBool}, {"flipX", KindBool}, {"flipY", KindBool},
	{"srcX", KindFloat}, {"srcY", KindFloat}, {"srcWidth", KindFloat}, {"srcHeight", KindFloat},
	{"hasSrc", KindBool},
	{"texture", KindID}, {"shader", KindID},
}

var textFieldDefs = []fieldSpec{
	{"fontSize", KindFloat}, {"maxWidth", KindFloat}, {"maxHeight", KindFloat},
	{"maxLines", KindInt}, {"textAlign", KindInt}, {"contain", KindInt},
	{"letterSpacing", KindFloat}, {"lineHeight", KindFloat},
}

func buildLayout(tag Tag, kind lantern.NodeKind, groups ...[]fieldSpec) *Layout {
	l := &Layout{Tag: tag, Kind: kind}
	for _, g := range groups {
		for _, d := range g {
			l.Fields = append(l.Fields, FieldDef{Name: d.name, Kind: d.kind, Word: headerWords + len(l.Fields)})
		}
	}
	if len(l.Fields) > maxFields {
		panic(fmt.Sprintf("mirror: layout %s has %d fields, max %d", tag, len(l.Fields), maxFields))
	}
	return l
}

// The layout table.
var (
	NodeLayout     = buildLayout(TagNode, lantern.NodeKindPlain, nodeFieldDefs)
	TextNodeLayout = buildLayout(TagTextNode, lantern.NodeKindText, nodeFieldDefs, textFieldDefs)
)

// LayoutForTag returns the layout registered for tag.
func LayoutForTag(tag Tag) (*Layout, error) {
	switch tag {
	case TagNode:
		return NodeLayout, nil
	case TagTextNode:
		return TextNodeLayout, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
}
