// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command gnmd is the host integration shell for the device layer
// (spec.md §4.10/§4.11): it brings up a Vulkan instance and device,
// constructs a device.Device over the selected GFX/compute queue
// families, serves Prometheus metrics, and drains device events until
// told to shut down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/gnmcore/device"
	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		metricsAddr      string
		deviceIndex      int
		enableValidation bool
	)

	root := &cobra.Command{
		Use:   "gnmd",
		Short: "gnmd hosts the GNM device emulator over a real Vulkan device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runConfig{
				metricsAddr:      metricsAddr,
				deviceIndex:      deviceIndex,
				enableValidation: enableValidation,
			})
		},
	}
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	root.Flags().IntVar(&deviceIndex, "device-index", 0, "physical device index to open")
	root.Flags().BoolVar(&enableValidation, "enable-validation", false, "enable VK_LAYER_KHRONOS_validation")
	return root
}

type runConfig struct {
	metricsAddr      string
	deviceIndex      int
	enableValidation bool
}

func run(ctx context.Context, cfg runConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("gnmd: building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	vkState, err := bringUpVulkan(cfg)
	if err != nil {
		return fmt.Errorf("gnmd: vulkan bring-up: %w", err)
	}
	defer vkState.cmds.DestroyDevice(vkState.device, nil)
	defer vkState.cmds.DestroyInstance(vkState.instance, nil)

	dev, err := device.New(vkState.cmds, vkState.device, vkState.queues,
		vkState.hostMemoryTypeIndex, vkState.deviceMemoryTypeIndex, logger)
	if err != nil {
		return fmt.Errorf("gnmd: constructing device: %w", err)
	}

	registry := prometheus.NewRegistry()
	for _, c := range dev.Metrics().Collectors() {
		registry.MustRegister(c)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go drainEvents(ctx, logger, dev)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("metrics server failed", zap.Error(err))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := dev.WaitForIdle(); err != nil {
		logger.Warn("waitForIdle returned an error during shutdown", zap.Error(err))
	}
	dev.Destroy()
	return nil
}

func drainEvents(ctx context.Context, logger *zap.Logger, dev *device.Device) {
	for {
		select {
		case ev, ok := <-dev.Events():
			if !ok {
				return
			}
			logger.Debug("device event", zap.Uint32("vmId", ev.VMID), zap.Uint64("addr", ev.Addr))
		case <-ctx.Done():
			return
		}
	}
}

type vulkanState struct {
	cmds     *vk.Commands
	instance vk.Instance
	device   vk.Device
	queues   device.QueueHandles

	hostMemoryTypeIndex   uint32
	deviceMemoryTypeIndex uint32
}

// bringUpVulkan creates a Vulkan instance, opens deviceIndex's physical
// device, and requests one graphics queue family and one compute queue
// family broad enough to back device.QueueHandles's GFX and compute
// pipes. It follows the same raw vkCreateInstance/vkCreateDevice shape
// hal/vulkan/api.go and adapter.go use, since gnmd cannot depend on
// that package directly (its own import path has not been repointed at
// this module yet, see DESIGN.md) — only on hal/vulkan/vk, the
// platform-generic command-loading layer cache/sched/tile already
// build on.
func bringUpVulkan(cfg runConfig) (*vulkanState, error) {
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vkInit: %w", err)
	}

	cmds := &vk.Commands{}
	cmds.LoadGlobal()

	appName := []byte("gnmd\x00")
	engineName := []byte("gnmcore\x00")
	appInfo := vk.ApplicationInfo{
		SType:            vk.StructureTypeApplicationInfo,
		PApplicationName: uintptr(unsafe.Pointer(&appName[0])),
		PEngineName:      uintptr(unsafe.Pointer(&engineName[0])),
		ApiVersion:       vkAPIVersion(1, 2, 0),
	}

	var layerPtrs []uintptr
	var layers [][]byte
	if cfg.enableValidation {
		layers = append(layers, []byte("VK_LAYER_KHRONOS_validation\x00"))
		layerPtrs = append(layerPtrs, uintptr(unsafe.Pointer(&layers[0][0])))
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:             vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:  &appInfo,
		EnabledLayerCount: uint32(len(layerPtrs)),
	}
	if len(layerPtrs) > 0 {
		instanceInfo.PpEnabledLayerNames = uintptr(unsafe.Pointer(&layerPtrs[0]))
	}

	var instance vk.Instance
	if result := cmds.CreateInstance(&instanceInfo, nil, &instance); result != vk.Success {
		return nil, fmt.Errorf("vkCreateInstance failed: %d", result)
	}
	cmds.LoadInstance(instance)

	var physDeviceCount uint32
	cmds.EnumeratePhysicalDevices(instance, &physDeviceCount, nil)
	if physDeviceCount == 0 {
		cmds.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("no Vulkan physical devices found")
	}
	physDevices := make([]vk.PhysicalDevice, physDeviceCount)
	cmds.EnumeratePhysicalDevices(instance, &physDeviceCount, &physDevices[0])
	if cfg.deviceIndex >= len(physDevices) {
		cmds.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("device index %d out of range (found %d)", cfg.deviceIndex, len(physDevices))
	}
	physDevice := physDevices[cfg.deviceIndex]

	gfxFamily, computeFamily, err := selectQueueFamilies(cmds, physDevice)
	if err != nil {
		cmds.DestroyInstance(instance, nil)
		return nil, err
	}

	const queuePriorityCount = 8
	priorities := make([]float32, queuePriorityCount)
	for i := range priorities {
		priorities[i] = 1.0
	}

	var probeQueues device.QueueHandles
	queueInfos := []vk.DeviceQueueCreateInfo{
		{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: gfxFamily,
			QueueCount:       uint32(len(probeQueues.GFX)),
			PQueuePriorities: &priorities[0],
		},
		{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: computeFamily,
			QueueCount:       uint32(len(probeQueues.Compute)),
			PQueuePriorities: &priorities[0],
		},
	}

	deviceInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    &queueInfos[0],
	}

	var vkDevice vk.Device
	if result := cmds.CreateDevice(physDevice, &deviceInfo, nil, &vkDevice); result != vk.Success {
		cmds.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("vkCreateDevice failed: %d", result)
	}
	cmds.LoadDevice(vkDevice)

	var queues device.QueueHandles
	queues.GFXFamily = gfxFamily
	queues.ComputeFamily = computeFamily
	for i := range queues.GFX {
		cmds.GetDeviceQueue(vkDevice, gfxFamily, uint32(i), &queues.GFX[i])
	}
	for i := range queues.Compute {
		cmds.GetDeviceQueue(vkDevice, computeFamily, uint32(i), &queues.Compute[i])
	}

	hostIdx, deviceIdx, err := selectMemoryTypes(cmds, physDevice)
	if err != nil {
		cmds.DestroyDevice(vkDevice, nil)
		cmds.DestroyInstance(instance, nil)
		return nil, err
	}

	return &vulkanState{
		cmds:                  cmds,
		instance:              instance,
		device:                vkDevice,
		queues:                queues,
		hostMemoryTypeIndex:   hostIdx,
		deviceMemoryTypeIndex: deviceIdx,
	}, nil
}

func selectQueueFamilies(cmds *vk.Commands, physDevice vk.PhysicalDevice) (gfx, compute uint32, err error) {
	var count uint32
	cmds.GetPhysicalDeviceQueueFamilyProperties(physDevice, &count, nil)
	if count == 0 {
		return 0, 0, fmt.Errorf("physical device reports no queue families")
	}
	props := make([]vk.QueueFamilyProperties, count)
	cmds.GetPhysicalDeviceQueueFamilyProperties(physDevice, &count, &props[0])

	gfxFound, computeFound := false, false
	for i, p := range props {
		if !gfxFound && p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			gfx = uint32(i)
			gfxFound = true
		}
		if !computeFound && p.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			compute = uint32(i)
			computeFound = true
		}
	}
	if !gfxFound {
		return 0, 0, fmt.Errorf("no graphics-capable queue family found")
	}
	if !computeFound {
		compute = gfx
	}
	return gfx, compute, nil
}

func selectMemoryTypes(cmds *vk.Commands, physDevice vk.PhysicalDevice) (hostIdx, deviceIdx uint32, err error) {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(cmds, physDevice, &props)

	hostFound, deviceFound := false, false
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		flags := props.MemoryTypes[i].PropertyFlags
		if !hostFound && flags&vk.MemoryPropertyHostVisibleBit != 0 && flags&vk.MemoryPropertyHostCoherentBit != 0 {
			hostIdx = i
			hostFound = true
		}
		if !deviceFound && flags&vk.MemoryPropertyDeviceLocalBit != 0 {
			deviceIdx = i
			deviceFound = true
		}
	}
	if !hostFound || !deviceFound {
		return 0, 0, fmt.Errorf("physical device lacks a host-visible or device-local memory type")
	}
	return hostIdx, deviceIdx, nil
}

func vkAPIVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}
