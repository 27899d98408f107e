package logging

const (
	FieldConnID     = "conn_id"
	FieldMemberID   = "member_id"
	FieldUsername   = "username"
	FieldTransport  = "transport"
	FieldRemoteAddr = "remote_addr"
	FieldAddr       = "addr"
	FieldComponent  = "component"
)
