package mirror

import (
	"fmt"

	"github.com/phanxgames/lantern"
)

// ID identifies a mirrored object: a node, texture, shader or animation.
// IDs are allocated by the client and never reused. 0 means none.
type ID uint64

// RootID is the ID of the stage's root node.
const RootID ID = 1

// MessageKind identifies a structural message from the client to the
// worker.
type MessageKind uint8

const (
	MsgCreateNode MessageKind = iota
	MsgSetParent
	MsgDestroy
	MsgSetText
	MsgSetFontFamily
	MsgSubscribe
	MsgUnsubscribe
	MsgCreateTexture
	MsgReleaseTexture
	MsgCreateShader
	MsgSetShaderProp
	MsgRemoveShader
	MsgAnimate
	MsgAnimationCommand
)

var messageKindNames = [...]string{
	MsgCreateNode:       "createNode",
	MsgSetParent:        "setParent",
	MsgDestroy:          "destroy",
	MsgSetText:          "setText",
	MsgSetFontFamily:    "setFontFamily",
	MsgSubscribe:        "subscribe",
	MsgUnsubscribe:      "unsubscribe",
	MsgCreateTexture:    "createTexture",
	MsgReleaseTexture:   "releaseTexture",
	MsgCreateShader:     "createShader",
	MsgSetShaderProp:    "setShaderProp",
	MsgRemoveShader:     "removeShader",
	MsgAnimate:          "animate",
	MsgAnimationCommand: "animationCommand",
}

func (k MessageKind) String() string {
	if int(k) < len(messageKindNames) {
		return messageKindNames[k]
	}
	return fmt.Sprintf("MessageKind(%d)", uint8(k))
}

// AnimationCommand is a control call on a mirrored animation.
type AnimationCommand uint8

const (
	AnimStart AnimationCommand = iota
	AnimPause
	AnimStop
	AnimRestore
)

func (c AnimationCommand) String() string {
	switch c {
	case AnimStart:
		return "start"
	case AnimPause:
		return "pause"
	case AnimStop:
		return "stop"
	case AnimRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Message is one structural operation. Only the fields of its kind are set.
type Message struct {
	Kind MessageKind
	// Target is the node, texture, shader or animation the message is about.
	Target ID
	// Parent is the new parent for createNode and setParent, or the parent
	// texture for a sub texture.
	Parent ID
	Buffer *BufferStruct

	Str   string // setText, setFontFamily, createNode (text), createShader (type name), setShaderProp (prop name)
	Str2  string // createNode (font family)
	Index int    // createNode: child index, -1 appends

	EventType lantern.NodeEventType // subscribe, unsubscribe

	TextureType    lantern.TextureType
	TextureProps   lantern.TextureProps // Parent is ignored; see Parent
	TextureOptions lantern.TextureOptions

	ShaderProps map[string]any
	Value       any // setShaderProp

	Animation         ID // animate: the node in Target, the new animation here
	AnimationProps    lantern.AnimationProps
	AnimationSettings lantern.AnimationSettings
	Command           AnimationCommand
}

// EventKind identifies a notification from the worker.
type EventKind uint8

const (
	EventNode      EventKind = iota // a subscribed node event
	EventAnimation                  // an animation event
	EventError                      // a message failed on the worker
)

// Event is an application-visible notification from the worker. Internal
// recomputes never produce events.
type Event struct {
	Kind EventKind
	// Target is the node or animation ID.
	Target ID

	NodeEvent  lantern.NodeEventType
	Dimensions lantern.Dimensions
	Previous   lantern.BoundsState
	Current    lantern.BoundsState

	AnimationEvent lantern.AnimationEventType
	AnimationState lantern.AnimationState

	Message MessageKind // error: the failed message
	Err     error
}
