//go:build windows

package ocr

import (
	"fmt"
	"syscall"
	"unsafe"
)

// COM/WinRT vtable calling infrastructure, following the same pure-Go
// syscall pattern the agent's desktop capture package uses for its media
// transform calls: no cgo, raw vtable dispatch via syscall.SyscallN.

type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))

	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(fnPtr, allArgs...)

	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

func comRelease(obj uintptr) {
	if obj != 0 {
		vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
		fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + 2*unsafe.Sizeof(uintptr(0))))
		syscall.SyscallN(fnPtr, obj)
	}
}

var (
	combaseDLL = syscall.NewLazyDLL("combase.dll")

	procRoInitialize            = combaseDLL.NewProc("RoInitialize")
	procRoUninitialize          = combaseDLL.NewProc("RoUninitialize")
	procRoGetActivationFactory  = combaseDLL.NewProc("RoGetActivationFactory")
	procWindowsCreateString     = combaseDLL.NewProc("WindowsCreateString")
	procWindowsDeleteString     = combaseDLL.NewProc("WindowsDeleteString")
	procWindowsGetStringRawBuf  = combaseDLL.NewProc("WindowsGetStringRawBuffer")
)

const roInitMultithreaded = 1

// --- vtable index constants (fixed by the WinRT ABI) ---
// IUnknown/IInspectable: 0=QueryInterface,1=AddRef,2=Release,
//
//	3=GetIids,4=GetRuntimeClassName,5=GetTrustLevel
const (
	vtblInspectableBase = 6

	// IOcrEngineStatics: TryCreateFromUserProfileLanguages, TryCreateFromLanguage,
	// AvailableRecognizerLanguages, IsLanguageSupported.
	vtblOcrTryCreateFromUserProfileLanguages = vtblInspectableBase + 0

	// IOcrEngine: RecognizeAsync(SoftwareBitmap, IAsyncOperation**)
	vtblOcrRecognizeAsync = vtblInspectableBase + 0

	// IOcrResult: get_Text, get_Lines
	vtblOcrResultGetText = vtblInspectableBase + 1
)

func hstring(s string) (uintptr, error) {
	u16, err := syscall.UTF16PtrFromString(s)
	if err != nil {
		return 0, err
	}
	var h uintptr
	ret, _, _ := procWindowsCreateString.Call(uintptr(unsafe.Pointer(u16)), uintptr(len(s)), uintptr(unsafe.Pointer(&h)))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("WindowsCreateString failed: 0x%08X", uint32(ret))
	}
	return h, nil
}

func freeHString(h uintptr) {
	if h != 0 {
		procWindowsDeleteString.Call(h)
	}
}
