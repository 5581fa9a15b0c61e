package tools

import (
	"context"
	"fmt"
	"log"
)

// ComplaintFiler persists a filed complaint and returns its reference id.
// Implemented by *store.Store.
type ComplaintFiler interface {
	CreateComplaint(ctx context.Context, serviceName, problem string) (string, error)
}

// ComplaintTool files a citizen grievance as a durable record. It is the only
// side-effecting tool; the rest are read-only lookups.
type ComplaintTool struct {
	Filer  ComplaintFiler
	Logger *log.Logger
}

func (t *ComplaintTool) Name() string { return "file_complaint" }

func (t *ComplaintTool) Description() string {
	return "Files a citizen complaint about a public service (electricity, water, roads, etc.) and returns a reference number. Use when the citizen asks to register or file a complaint."
}

func (t *ComplaintTool) Parameters() []ParamSpec {
	return []ParamSpec{
		{Name: "service_name", Type: "string", Description: "The public service the complaint is about, e.g. Electricity Issue", Required: true},
		{Name: "problem_description", Type: "string", Description: "The citizen's description of the problem, in their own words", Required: true},
	}
}

// Execute validates both required arguments and files the complaint. Missing
// arguments fail fast with success=false and no record; the orchestrator
// never retries or invents defaults.
func (t *ComplaintTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	serviceName, okName := stringArg(args, "service_name")
	problem, okProblem := stringArg(args, "problem_description")
	if !okName || !okProblem {
		return Result{
			Success: false,
			Message: "आवश्यक जानकारी अधूरी है: कृपया सेवा का नाम और समस्या का विवरण दें। / Required fields are missing: please provide the service name and the problem description.",
		}, nil
	}

	ref, err := t.Filer.CreateComplaint(ctx, serviceName, problem)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Printf("file complaint failed: %v", err)
		}
		return Result{
			Success: false,
			Message: "शिकायत दर्ज नहीं हो सकी, कृपया बाद में पुनः प्रयास करें। / The complaint could not be registered, please try again later.",
		}, err
	}

	return Result{
		Success:     true,
		ReferenceID: ref,
		Message: fmt.Sprintf(
			"आपकी शिकायत दर्ज कर ली गई है। संदर्भ संख्या: %s / Your complaint about %q has been registered. Reference ID: %s",
			ref, serviceName, ref),
	}, nil
}
