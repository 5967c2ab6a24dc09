package model

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Type:     typ.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		JsonName: proto.String(name),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

// libraryFile declares example.library.v1 with a service, nested types, an enum and
// source info for Book and Library.GetBook
func libraryFile() *descriptorpb.FileDescriptorProto {
	const (
		str = descriptorpb.FieldDescriptorProto_TYPE_STRING
		msg = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
		enm = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("example/library.proto"),
		Package: proto.String("example.library.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Book"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, str, ""),
					field("author", 2, msg, "Author"),
					field("state", 3, enm, ".example.library.v1.Book.State"),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:  proto.String("Author"),
						Field: []*descriptorpb.FieldDescriptorProto{field("display_name", 1, str, "")},
					},
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					{
						Name: proto.String("State"),
						Value: []*descriptorpb.EnumValueDescriptorProto{
							{Name: proto.String("STATE_UNSPECIFIED"), Number: proto.Int32(0)},
							{Name: proto.String("AVAILABLE"), Number: proto.Int32(1)},
						},
					},
				},
			},
			{
				Name:  proto.String("GetBookRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{field("name", 1, str, "")},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("Library"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:       proto.String("GetBook"),
						InputType:  proto.String(".example.library.v1.GetBookRequest"),
						OutputType: proto.String(".example.library.v1.Book"),
					},
				},
			},
		},
		SourceCodeInfo: &descriptorpb.SourceCodeInfo{
			Location: []*descriptorpb.SourceCodeInfo_Location{
				{Path: []int32{2}, Span: []int32{1, 0, 27}, LeadingComments: proto.String(" @api:suppress:documentation-*\n")},
				{Path: []int32{4, 0}, Span: []int32{5, 0, 12, 1}, LeadingComments: proto.String(" A book.\n @api:suppress:http-*\n")},
				{Path: []int32{4, 0, 2, 0}, Span: []int32{6, 2, 18}, TrailingComments: proto.String(" Resource name.\n")},
				{Path: []int32{6, 0, 2, 0}, Span: []int32{20, 2, 60}, LeadingComments: proto.String(" Gets a book.\n @api:bogus\n")},
			},
		},
	}
}

func librarySet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{libraryFile()}}
}
