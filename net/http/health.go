package http

import (
	"github.com/Tar-2005/Workflowgenie/bootstrap"
	cn "github.com/Tar-2005/Workflowgenie/constants"
	"github.com/gofiber/fiber/v2"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// ResourceUsage is the host resource snapshot reported by the health endpoint.
type ResourceUsage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
}

// HealthResponse is the body rendered by the health endpoint.
type HealthResponse struct {
	Status    string         `json:"status"`
	InitState string         `json:"init_state"`
	Resources *ResourceUsage `json:"resources,omitempty"`
}

func resourceSnapshot() *ResourceUsage {
	usage := &ResourceUsage{}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		usage.CPUPercent = percentages[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		usage.MemoryPercent = vm.UsedPercent
		usage.MemoryUsedMB = vm.Used / (1 << 20)
	}

	return usage
}

// Health creates a liveness handler. It answers 200 as long as the process
// serves requests, regardless of initialization state, and includes a host
// resource snapshot.
func Health(init *bootstrap.Initializer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		response := HealthResponse{
			Status:    cn.StatusAvailable,
			InitState: bootstrap.StatusReady.String(),
			Resources: resourceSnapshot(),
		}

		if init != nil {
			response.InitState = init.Status().String()
		}

		return OK(c, response)
	}
}

// Ready creates a readiness handler gated on the background initializer.
// It answers 200 once initialization completed, 503 while it is pending or
// after it failed.
func Ready(init *bootstrap.Initializer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if init == nil || init.Ready() {
			return OK(c, fiber.Map{"status": cn.StatusAvailable})
		}

		status := cn.StatusInitializing
		if init.Status() == bootstrap.StatusFailed {
			status = cn.StatusFailed
		}

		return JSONResponse(c, fiber.StatusServiceUnavailable, fiber.Map{"status": status})
	}
}

// debugInitTail bounds how many journal entries the diagnostics endpoint returns.
const debugInitTail = 200

// DebugInit creates the init diagnostics handler. It returns the tail of the
// initializer journal, or 404 when nothing was recorded.
func DebugInit(init *bootstrap.Initializer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if init == nil {
			return NotFoundError(c, "no_init_log", "no init log found")
		}

		tail := init.Tail(debugInitTail)
		if len(tail) == 0 {
			return NotFoundError(c, "no_init_log", "no init log found")
		}

		return OK(c, fiber.Map{"ok": true, "tail": tail})
	}
}
