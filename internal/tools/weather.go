package tools

import (
	"context"
	"fmt"
)

// WeatherTool serves canned weather data for a handful of cities.
type WeatherTool struct{}

// NewWeatherTool constructs the get_weather tool.
func NewWeatherTool() *WeatherTool {
	return &WeatherTool{}
}

func (w *WeatherTool) Name() string { return "get_weather" }

func (w *WeatherTool) Description() string {
	return "Get weather information for a location"
}

func (w *WeatherTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "The location to get weather for (e.g., 'New York', 'London', 'Tokyo', 'Sydney', 'Paris')",
			},
		},
		"required": []string{"location"},
	}
}

type conditions struct {
	condition   string
	temperature string
}

var weatherTable = map[string]conditions{
	"New York": {"Sunny", "72°F"},
	"London":   {"Rainy", "60°F"},
	"Tokyo":    {"Cloudy", "65°F"},
	"Sydney":   {"Partly Cloudy", "70°F"},
	"Paris":    {"Clear", "68°F"},
}

func (w *WeatherTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	location := stringArg(args, "location")
	if location == "" {
		return report("Location not provided")
	}
	data, ok := weatherTable[location]
	if !ok {
		return Result{Content: fmt.Sprintf("No weather data available for %s", location)}, nil
	}
	return Result{Content: fmt.Sprintf("Weather in %s: %s, %s", location, data.condition, data.temperature)}, nil
}
