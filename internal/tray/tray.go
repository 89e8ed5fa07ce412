package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/soundboard-tray/internal/app"
	"github.com/petems/soundboard-tray/internal/audio"
	"github.com/rs/zerolog"
)

type Config struct {
	Version string
	Commit  string
	LogPath string
	Logger  zerolog.Logger
}

// UI is the tray menu. It implements app.NotificationSink; notifications
// that arrive before the menu exists are replayed once it is built.
type UI struct {
	app     *app.App
	version string
	commit  string
	logPath string
	log     zerolog.Logger

	mu         sync.Mutex
	ready      bool
	clips      []string // registered before ready
	devices    []audio.Device
	nowPlaying string

	// Menu items
	mNow       *systray.MenuItem
	mSounds    *systray.MenuItem
	mStop      *systray.MenuItem
	mVolume    *systray.MenuItem
	mMic       *systray.MenuItem
	mMicNone   *systray.MenuItem
	mRefresh   *systray.MenuItem
	mClipboard *systray.MenuItem

	soundItems map[string]*systray.MenuItem
	volItems   []*systray.MenuItem
	micItems   []*systray.MenuItem
	micIDs     []int // device id shown by each mic item
}

func New(cfg Config) *UI {
	return &UI{
		version:    cfg.Version,
		commit:     cfg.Commit,
		logPath:    cfg.LogPath,
		log:        cfg.Logger,
		soundItems: make(map[string]*systray.MenuItem),
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run shows the tray and blocks until Quit is chosen or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			systray.Quit()
		case <-stop:
		}
	}()

	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTitle(statusTitle(""))
	systray.SetTooltip("Soundboard")

	// Build menu
	u.mNow = systray.AddMenuItem(nowPlayingLabel(""), "Currently playing sound")
	u.mNow.Disable()
	u.mStop = systray.AddMenuItem("Stop", "Stop playback")
	systray.AddSeparator()

	u.mSounds = systray.AddMenuItem("Sounds", "Play a loaded sound")
	u.mClipboard = systray.AddMenuItem("Add Sounds from Clipboard", "Load the file paths on the clipboard")
	systray.AddSeparator()

	u.mVolume = systray.AddMenuItem("Volume", "Sound volume")
	u.buildVolumeMenu()

	u.mMic = systray.AddMenuItem("Your Microphone", "Microphone mixed into the virtual cable")
	u.mMicNone = u.mMic.AddSubMenuItemCheckbox("None", "Do not capture a microphone", true)
	u.mRefresh = systray.AddMenuItem("Refresh Devices", "Re-scan audio devices")

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About Soundboard")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.mu.Lock()
	u.ready = true
	clips, devices, now := u.clips, u.devices, u.nowPlaying
	u.clips = nil
	u.mu.Unlock()

	for _, name := range clips {
		u.addSound(name)
	}
	u.DevicesChanged(devices)
	u.NowPlayingChanged(now)

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStop.ClickedCh:
			u.app.Stop()
		case <-u.mClipboard.ClickedCh:
			u.loadFromClipboard()
		case <-u.mMicNone.ClickedCh:
			u.selectMicrophone(nil)
		case <-u.mRefresh.ClickedCh:
			if err := u.app.RefreshDevices(); err != nil {
				u.log.Error().Err(err).Msg("Failed to refresh devices")
			}
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// ClipRegistered adds a menu entry for the new sound.
func (u *UI) ClipRegistered(name string) {
	u.mu.Lock()
	if !u.ready {
		u.clips = append(u.clips, name)
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()
	u.addSound(name)
}

// ClipLoadFailed reports the failure in the tooltip; the sound never got
// a menu entry.
func (u *UI) ClipLoadFailed(name string, err error) {
	u.log.Warn().Err(err).Str("clip", name).Msg("Sound could not be loaded")

	u.mu.Lock()
	ready := u.ready
	u.mu.Unlock()
	if ready {
		systray.SetTooltip(fmt.Sprintf("Failed to load %s", name))
	}
}

// NowPlayingChanged updates the title and the "Now" label.
func (u *UI) NowPlayingChanged(name string) {
	u.mu.Lock()
	u.nowPlaying = name
	ready := u.ready
	u.mu.Unlock()
	if !ready {
		return
	}

	systray.SetTitle(statusTitle(name))
	u.mNow.SetTitle(nowPlayingLabel(name))
	if name == "" {
		u.mStop.Disable()
	} else {
		u.mStop.Enable()
	}
}

// DevicesChanged rebuilds the microphone submenu. Menu items cannot be
// removed, so surplus items are hidden and reused later.
func (u *UI) DevicesChanged(devices []audio.Device) {
	u.mu.Lock()
	u.devices = devices
	if !u.ready {
		u.mu.Unlock()
		return
	}

	var selected *int
	if mic, ok := u.app.Microphone(); ok {
		selected = &mic.ID
	}
	choices := micChoices(devices, selected)

	for i, c := range choices {
		if i >= len(u.micItems) {
			item := u.mMic.AddSubMenuItemCheckbox("", "Use this microphone", false)
			u.micItems = append(u.micItems, item)
			u.micIDs = append(u.micIDs, 0)
			go u.handleMicItem(i, item)
		}
		item := u.micItems[i]
		u.micIDs[i] = c.ID
		item.SetTitle(c.Label)
		if c.Selected {
			item.Check()
		} else {
			item.Uncheck()
		}
		item.Show()
	}
	for _, item := range u.micItems[len(choices):] {
		item.Hide()
	}
	u.mu.Unlock()

	if selected == nil {
		u.mMicNone.Check()
	} else {
		u.mMicNone.Uncheck()
	}
}

func (u *UI) handleMicItem(slot int, item *systray.MenuItem) {
	for range item.ClickedCh {
		u.mu.Lock()
		id := u.micIDs[slot]
		u.mu.Unlock()
		u.selectMicrophone(&id)
	}
}

func (u *UI) selectMicrophone(id *int) {
	if err := u.app.SelectMicrophone(id); err != nil {
		u.log.Error().Err(err).Msg("Failed to select microphone")
		systray.SetTooltip("Microphone unavailable")
	}
	u.DevicesChanged(u.app.Devices())
}

func (u *UI) addSound(name string) {
	u.mu.Lock()
	if _, ok := u.soundItems[name]; ok {
		u.mu.Unlock()
		return
	}
	item := u.mSounds.AddSubMenuItem(name, "Play "+name)
	u.soundItems[name] = item
	u.mu.Unlock()

	go func() {
		for range item.ClickedCh {
			u.app.Play(name)
		}
	}()
}

func (u *UI) buildVolumeMenu() {
	current := u.app.Volume()
	for _, step := range volumeSteps {
		item := u.mVolume.AddSubMenuItemCheckbox(volumeLabel(step), "", step == nearestStep(current))
		u.volItems = append(u.volItems, item)
	}

	for i, item := range u.volItems {
		go func(v float32, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				// Uncheck all other items
				for j, itm := range u.volItems {
					if j != i {
						itm.Uncheck()
					}
				}
				// Check this item
				menuItem.Check()
				u.app.SetVolume(v)
				u.log.Info().Float32("volume", v).Msg("Changed volume")
			}
		}(volumeSteps[i], item)
	}
}

func (u *UI) loadFromClipboard() {
	text, err := clipboard.ReadAll()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to read clipboard")
		return
	}
	paths := parseClipboardPaths(text)
	if len(paths) == 0 {
		u.log.Info().Msg("Clipboard holds no file paths")
		return
	}
	u.app.LoadFiles(paths)
}

func (u *UI) openLogs() {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u.logPath)
	case "windows":
		cmd = exec.Command("explorer", u.logPath)
	default:
		cmd = exec.Command("xdg-open", u.logPath)
	}
	if err := cmd.Start(); err != nil {
		u.log.Error().Err(err).Str("path", u.logPath).Msg("Failed to open logs")
		return
	}
	go cmd.Wait()
}

func (u *UI) showAbout() {
	systray.SetTooltip(fmt.Sprintf("Soundboard %s (%s)", u.version, u.commit))
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("Soundboard")
}

func (u *UI) onExit() {
	u.log.Info().Msg("Tray closed")
}
