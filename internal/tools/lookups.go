package tools

import (
	"context"
	"fmt"
	"strings"
)

// The lookup tools below are pure read-only queries against static reference
// data. They have no persisted side effects and always return success with a
// best-effort message, falling back to a generic "no information" answer.

const noInfoMessage = "इस विषय में अभी कोई जानकारी उपलब्ध नहीं है। / No information is available for this query right now."

// WeatherTool answers district-level weather questions for farmers.
type WeatherTool struct{}

func (WeatherTool) Name() string { return "get_weather" }

func (WeatherTool) Description() string {
	return "Returns the current weather outlook for a district. Use for farming or travel related weather questions."
}

func (WeatherTool) Parameters() []ParamSpec {
	return []ParamSpec{
		{Name: "district", Type: "string", Description: "District name, e.g. Jaipur", Required: true},
	}
}

func (WeatherTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	district, ok := stringArg(args, "district")
	if !ok {
		return Result{Success: true, Message: noInfoMessage}, nil
	}
	if outlook, found := weatherByDistrict[strings.ToLower(district)]; found {
		return Result{Success: true, Message: fmt.Sprintf("%s: %s", district, outlook)}, nil
	}
	return Result{Success: true, Message: noInfoMessage}, nil
}

// MarketPriceTool reports mandi (wholesale market) prices for crops.
type MarketPriceTool struct{}

func (MarketPriceTool) Name() string { return "get_market_price" }

func (MarketPriceTool) Description() string {
	return "Returns the latest mandi price for a crop. Use when a farmer asks about selling prices."
}

func (MarketPriceTool) Parameters() []ParamSpec {
	return []ParamSpec{
		{Name: "crop", Type: "string", Description: "Crop name, e.g. wheat, गेहूं", Required: true},
	}
}

func (MarketPriceTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	crop, ok := stringArg(args, "crop")
	if !ok {
		return Result{Success: true, Message: noInfoMessage}, nil
	}
	if price, found := mandiPrices[strings.ToLower(crop)]; found {
		return Result{Success: true, Message: fmt.Sprintf("%s का वर्तमान मंडी भाव: %s / Current mandi price for %s: %s", crop, price, crop, price)}, nil
	}
	return Result{Success: true, Message: noInfoMessage}, nil
}

// SchemeTool looks up government welfare scheme summaries.
type SchemeTool struct{}

func (SchemeTool) Name() string { return "get_scheme_info" }

func (SchemeTool) Description() string {
	return "Returns eligibility and benefit details for a government welfare scheme."
}

func (SchemeTool) Parameters() []ParamSpec {
	return []ParamSpec{
		{Name: "scheme", Type: "string", Description: "Scheme name or a fragment of it, e.g. PM-Kisan", Required: true},
	}
}

func (SchemeTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	scheme, ok := stringArg(args, "scheme")
	if !ok {
		return Result{Success: true, Message: noInfoMessage}, nil
	}
	needle := strings.ToLower(scheme)
	for name, info := range schemeInfo {
		if strings.Contains(strings.ToLower(name), needle) || strings.Contains(needle, strings.ToLower(name)) {
			return Result{Success: true, Message: fmt.Sprintf("%s: %s", name, info)}, nil
		}
	}
	return Result{Success: true, Message: noInfoMessage}, nil
}

// CenterTool locates the nearest government service center for a district.
type CenterTool struct{}

func (CenterTool) Name() string { return "find_nearby_center" }

func (CenterTool) Description() string {
	return "Finds the nearest government service center (CSC/Jan Seva Kendra) for a district."
}

func (CenterTool) Parameters() []ParamSpec {
	return []ParamSpec{
		{Name: "district", Type: "string", Description: "District name", Required: true},
	}
}

func (CenterTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	district, ok := stringArg(args, "district")
	if !ok {
		return Result{Success: true, Message: noInfoMessage}, nil
	}
	if center, found := serviceCenters[strings.ToLower(district)]; found {
		return Result{Success: true, Message: center}, nil
	}
	return Result{Success: true, Message: noInfoMessage}, nil
}
