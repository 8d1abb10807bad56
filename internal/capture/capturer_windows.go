//go:build windows

package capture

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"

	"github.com/screenpipe/agent/internal/core"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")
	gdi32  = syscall.NewLazyDLL("gdi32.dll")

	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procSetProcessDPIAware = user32.NewProc("SetProcessDPIAware")
	procEnumWindows        = user32.NewProc("EnumWindows")
	procGetWindowTextW     = user32.NewProc("GetWindowTextW")
	procGetWindowTextLenW  = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible    = user32.NewProc("IsWindowVisible")
	procGetForegroundWin   = user32.NewProc("GetForegroundWindow")
	procGetWindowRect      = user32.NewProc("GetWindowRect")

	procCreateDCW              = gdi32.NewProc("CreateDCW")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	smCxScreen   = 0
	smCyScreen   = 1
	srcCopy      = 0x00CC0020
	captureBlt   = 0x40000000
	biRGB        = 0
	dibRGBColors = 0
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

type rect struct {
	Left, Top, Right, Bottom int32
}

var displayDeviceName = syscall.StringToUTF16Ptr("DISPLAY")

func init() {
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

// gdiCapturer captures the full monitor plus each visible top-level window
// via GDI BitBlt. Handles are created once per resolution and reused across
// frames, same discipline as the corpus's nocgo GDI capturer.
type gdiCapturer struct {
	mu sync.Mutex

	screenDC      uintptr
	screenDCOwned bool
	memDC         uintptr
	hBitmap       uintptr
	oldBitmap     uintptr
	bi            bitmapInfo
	width         int
	height        int
	inited        bool
	pixBuf        []byte
}

var globalCapturer = &gdiCapturer{}

func platformListMonitors() ([]MonitorInfo, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("GetSystemMetrics returned zero dimensions")
	}
	return []MonitorInfo{{
		ID:        0,
		Name:      "DISPLAY",
		Width:     int(w),
		Height:    int(h),
		IsPrimary: true,
	}}, nil
}

func platformCapture(monitorID uint32) (image.Image, []core.WindowImage, uint64, error) {
	if monitorID != 0 {
		return nil, nil, 0, errUnsupportedMonitor(monitorID)
	}

	globalCapturer.mu.Lock()
	defer globalCapturer.mu.Unlock()

	if err := globalCapturer.ensureHandlesLocked(); err != nil {
		return nil, nil, 0, fmt.Errorf("capture: %w", err)
	}
	full, err := globalCapturer.captureOnceLocked()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("capture: %w", err)
	}

	windows, err := enumWindowImages(full)
	if err != nil {
		// Window enumeration is best-effort: a full-frame capture without
		// per-window sub-images is still a usable FrameSample.
		windows = nil
	}

	return full, windows, imageHash(full), nil
}

func (c *gdiCapturer) ensureHandlesLocked() error {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if w == 0 || h == 0 {
		return fmt.Errorf("GetSystemMetrics returned zero dimensions")
	}
	width, height := int(w), int(h)

	if c.inited && c.width == width && c.height == height {
		return nil
	}
	c.releaseHandlesLocked()

	hdc, _, _ := procCreateDCW.Call(uintptr(unsafe.Pointer(displayDeviceName)), 0, 0, 0)
	if hdc == 0 {
		hdc, _, _ = procGetDC.Call(0)
		if hdc == 0 {
			return fmt.Errorf("both CreateDC and GetDC failed")
		}
		c.screenDCOwned = false
	} else {
		c.screenDCOwned = true
	}

	memDC, _, _ := procCreateCompatibleDC.Call(hdc)
	if memDC == 0 {
		c.freeScreenDC(hdc)
		return fmt.Errorf("CreateCompatibleDC failed")
	}

	hBitmap, _, _ := procCreateCompatibleBitmap.Call(hdc, uintptr(width), uintptr(height))
	if hBitmap == 0 {
		procDeleteDC.Call(memDC)
		c.freeScreenDC(hdc)
		return fmt.Errorf("CreateCompatibleBitmap failed")
	}

	oldBitmap, _, _ := procSelectObject.Call(memDC, hBitmap)
	if oldBitmap == 0 {
		procDeleteObject.Call(hBitmap)
		procDeleteDC.Call(memDC)
		c.freeScreenDC(hdc)
		return fmt.Errorf("SelectObject failed")
	}

	c.screenDC = hdc
	c.memDC = memDC
	c.hBitmap = hBitmap
	c.oldBitmap = oldBitmap
	c.width = width
	c.height = height
	c.inited = true
	c.pixBuf = make([]byte, width*height*4)
	c.bi = bitmapInfo{
		BmiHeader: bitmapInfoHeader{
			BiSize:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: biRGB,
		},
	}
	return nil
}

func (c *gdiCapturer) freeScreenDC(hdc uintptr) {
	if c.screenDCOwned {
		procDeleteDC.Call(hdc)
	} else {
		procReleaseDC.Call(0, hdc)
	}
}

func (c *gdiCapturer) releaseHandlesLocked() {
	if !c.inited {
		return
	}
	if c.oldBitmap != 0 && c.memDC != 0 {
		procSelectObject.Call(c.memDC, c.oldBitmap)
	}
	if c.hBitmap != 0 {
		procDeleteObject.Call(c.hBitmap)
	}
	if c.memDC != 0 {
		procDeleteDC.Call(c.memDC)
	}
	if c.screenDC != 0 {
		c.freeScreenDC(c.screenDC)
	}
	c.inited = false
	c.screenDC = 0
	c.screenDCOwned = false
	c.memDC = 0
	c.hBitmap = 0
	c.oldBitmap = 0
}

func (c *gdiCapturer) captureOnceLocked() (*image.RGBA, error) {
	ret, _, _ := procBitBlt.Call(c.memDC, 0, 0, uintptr(c.width), uintptr(c.height),
		c.screenDC, 0, 0, srcCopy|captureBlt)
	if ret == 0 {
		ret, _, _ = procBitBlt.Call(c.memDC, 0, 0, uintptr(c.width), uintptr(c.height),
			c.screenDC, 0, 0, srcCopy)
		if ret == 0 {
			return nil, fmt.Errorf("BitBlt failed")
		}
	}

	ret, _, _ = procGetDIBits.Call(
		c.memDC, c.hBitmap, 0, uintptr(c.height),
		uintptr(unsafe.Pointer(&c.pixBuf[0])),
		uintptr(unsafe.Pointer(&c.bi)),
		dibRGBColors,
	)
	if ret == 0 {
		return nil, fmt.Errorf("GetDIBits failed")
	}

	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	bgraToRGBA(c.pixBuf, img.Pix)
	return img, nil
}

func bgraToRGBA(src, dst []byte) {
	n := len(dst) / 4
	for i := 0; i < n; i++ {
		j := i * 4
		dst[j+0] = src[j+2]
		dst[j+1] = src[j+1]
		dst[j+2] = src[j+0]
		dst[j+3] = 255
	}
}

type enumWindowsState struct {
	foreground uintptr
	windows    []core.WindowImage
	full       *image.RGBA
}

func enumWindowImages(full image.Image) ([]core.WindowImage, error) {
	rgba, ok := full.(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("full frame is not *image.RGBA")
	}

	fg, _, _ := procGetForegroundWin.Call()
	state := &enumWindowsState{foreground: fg, full: rgba}

	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		st := (*enumWindowsState)(unsafe.Pointer(lparam))
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}
		title := windowTitle(hwnd)
		if title == "" {
			return 1
		}
		var r rect
		ret, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
		if ret == 0 {
			return 1
		}
		bounds := image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)).Intersect(st.full.Bounds())
		if bounds.Empty() {
			return 1
		}
		sub := cropRGBA(st.full, bounds)
		st.windows = append(st.windows, core.WindowImage{
			Image:      sub,
			AppName:    title,
			WindowName: title,
			Focused:    hwnd == st.foreground,
		})
		return 1
	})

	procEnumWindows.Call(cb, uintptr(unsafe.Pointer(state)))
	return state.windows, nil
}

func windowTitle(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLenW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return syscall.UTF16ToString(buf)
}

func cropRGBA(src *image.RGBA, bounds image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		srcOff := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		dstOff := dst.PixOffset(0, y)
		copy(dst.Pix[dstOff:dstOff+bounds.Dx()*4], src.Pix[srcOff:srcOff+bounds.Dx()*4])
	}
	return dst
}
