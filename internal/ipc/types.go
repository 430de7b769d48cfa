package ipc

import "sessionq/internal/api"

// ServiceName is the RPC service name registered by the server.
const ServiceName = "Sessionq"

// Queue operation payloads are shared with the HTTP API.
type (
	SubmitRequest     = api.SubmitRequest
	SubmitResponse    = api.SubmitResponse
	ClaimRequest      = api.ClaimRequest
	ClaimResponse     = api.ClaimResponse
	FinalizeRequest   = api.FinalizeRequest
	FinalizeResponse  = api.FinalizeResponse
	CountResponse     = api.CountResponse
	QueueListResponse = api.QueueListResponse
	JournalRequest    = api.JournalRequest
	JournalResponse   = api.JournalResponse
	StatusResponse    = api.DaemonStatus
)

// CountRequest is the empty payload for Count.
type CountRequest struct{}

// StatusRequest is the empty payload for Status.
type StatusRequest struct{}

// ListRequest is the empty payload for List.
type ListRequest struct{}
