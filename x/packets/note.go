package packets

import (
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/compose-network/streams/x/codec"
)

// Note is a small structured message carried as a protobuf Struct.
type Note struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Labels    []string  `json:"labels,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var _ codec.Packet = Note{}

func newNoteStruct() proto.Message { return &structpb.Struct{} }

func (n Note) Tag() string { return TagNote }

func (n Note) Encode(w io.Writer) error {
	return codec.NewProtoPacket(TagNote, n.toStruct()).Encode(w)
}

// DecodeNote decodes a Note with the default protobuf codec.
var DecodeNote = NoteDecoder(codec.NewProtoCodec(codec.DefaultMaxMessageSize))

// NoteDecoder returns a Note decoder that reads the protobuf body through c.
func NoteDecoder(c codec.StreamCodec) codec.DecodeFunc {
	decode := codec.ProtoDecoderWith(c, TagNote, newNoteStruct)
	return func(r io.Reader) (codec.Packet, error) {
		p, err := decode(r)
		if err != nil {
			return nil, err
		}
		return noteFromStruct(p.(*codec.ProtoPacket).Message().(*structpb.Struct))
	}
}

func (n Note) toStruct() *structpb.Struct {
	labels := make([]*structpb.Value, 0, len(n.Labels))
	for _, l := range n.Labels {
		labels = append(labels, structpb.NewStringValue(l))
	}

	fields := map[string]*structpb.Value{
		"author": structpb.NewStringValue(n.Author),
		"body":   structpb.NewStringValue(n.Body),
		"labels": structpb.NewListValue(&structpb.ListValue{Values: labels}),
	}
	if !n.CreatedAt.IsZero() {
		fields["created_at"] = structpb.NewStringValue(n.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

func noteFromStruct(s *structpb.Struct) (Note, error) {
	var n Note
	fields := s.GetFields()

	var err error
	if n.Author, err = stringField(fields, "author"); err != nil {
		return Note{}, err
	}
	if n.Body, err = stringField(fields, "body"); err != nil {
		return Note{}, err
	}

	if v, ok := fields["labels"]; ok {
		list, isList := v.GetKind().(*structpb.Value_ListValue)
		if !isList {
			return Note{}, fmt.Errorf("note field labels: expected list")
		}
		for i, lv := range list.ListValue.GetValues() {
			sv, isString := lv.GetKind().(*structpb.Value_StringValue)
			if !isString {
				return Note{}, fmt.Errorf("note field labels[%d]: expected string", i)
			}
			n.Labels = append(n.Labels, sv.StringValue)
		}
	}

	created, err := stringField(fields, "created_at")
	if err != nil {
		return Note{}, err
	}
	if created != "" {
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return Note{}, fmt.Errorf("note field created_at: %w", err)
		}
	}
	return n, nil
}

func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("note field %s: expected string", name)
	}
	return sv.StringValue, nil
}
