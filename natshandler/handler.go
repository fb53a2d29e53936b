package natshandler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"codesession/model"
	"codesession/service"
)

// Subjects served by this handler set.
const (
	SubjectInit    = "interpreter.session.init"
	SubjectExecute = "interpreter.execute.request"
	SubjectImages  = "interpreter.session.images"
	SubjectCleanup = "interpreter.session.cleanup"
)

func HandleInitRequest(msg *nats.Msg, nc *nats.Conn, svc *service.SessionService) {
	var req model.SessionRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("Failed to parse init request: %v", err)
		return
	}

	resp := model.SessionResponse{Success: true, StatusMessage: "session initialized"}
	if err := svc.InitSession(context.Background(), req.TaskID, req.Timeout); err != nil {
		log.Printf("Failed to initialize session for %s: %v", req.TaskID, err)
		resp = model.SessionResponse{Success: false, StatusMessage: err.Error()}
	}

	reply(nc, msg, resp)
}

func HandleExecuteRequest(msg *nats.Msg, nc *nats.Conn, svc *service.SessionService) {
	var req model.ExecuteRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("Failed to parse execution request: %v", err)
		return
	}

	result, err := svc.Execute(context.Background(), req.TaskID, req.Code, req.Section)
	if err != nil {
		log.Printf("Failed to execute code for %s: %v", req.TaskID, err)
		reply(nc, msg, model.ExecuteResponse{Success: false, StatusMessage: err.Error()})
		return
	}

	reply(nc, msg, model.ExecuteResponse{
		Success:       true,
		StatusMessage: "Success",
		Result:        result,
	})
}

func HandleImagesRequest(msg *nats.Msg, nc *nats.Conn, svc *service.SessionService) {
	var req model.SessionRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("Failed to parse images request: %v", err)
		return
	}

	images := svc.CreatedImages(context.Background(), req.TaskID, req.Section)
	reply(nc, msg, model.SessionResponse{
		Success:       true,
		StatusMessage: "Success",
		Images:        images,
	})
}

func HandleCleanupRequest(msg *nats.Msg, nc *nats.Conn, svc *service.SessionService) {
	var req model.SessionRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("Failed to parse cleanup request: %v", err)
		return
	}

	svc.CleanupSession(context.Background(), req.TaskID)
	reply(nc, msg, model.SessionResponse{Success: true, StatusMessage: "session cleaned up"})
}

func reply(nc *nats.Conn, msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(payload)
	nc.Publish(msg.Reply, data)
}
