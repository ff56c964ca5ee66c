// Package handlers contains HTTP handlers for the feeder control surface.
//
// This package provides handlers for:
//   - The dashboard status poll and arm/disarm switch
//   - Photo analysis and pet profile registration
//   - Feed history and the live MJPEG view
//   - Health checks
//
// Handlers report failures through the foundation/errors HTTP adapter, except
// where the dashboard expects the legacy {"success":false,"msg":...} shape.
package handlers
