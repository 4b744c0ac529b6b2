package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/colonyfeed/config"
)

// DefaultConfigPath is where the wizard writes when no path is given.
const DefaultConfigPath = "colonyfeed.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type answers struct {
	rpcEndpoint      string
	colonyAddress    string
	reputationOracle string
	reputationRPS    string
	listen           string
	backend          string
	fundsInterval    string
	usersInterval    string
	maxAge           string
	warmStart        bool
}

func defaultAnswers() answers {
	return answers{
		rpcEndpoint:      config.DefaultRPCEndpoint,
		reputationOracle: config.DefaultReputationOracle,
		reputationRPS:    strconv.Itoa(config.DefaultReputationRPS),
		listen:           config.DefaultListen,
		backend:          config.BackendFile,
		fundsInterval:    config.DefaultInterval.String(),
		usersInterval:    config.DefaultInterval.String(),
		maxAge:           config.DefaultMaxAge.String(),
	}
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
// It returns the path written.
func RunTUI(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("COLONY FEED CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the feed at your colony.\n"))

	fmt.Println(stepStyle.Render("STEP 1: COLONY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Colony address").
				Placeholder("0x...").
				Validate(validateAddress).
				Value(&a.colonyAddress),
			huh.NewInput().
				Title("RPC endpoint").
				Validate(required).
				Value(&a.rpcEndpoint),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Println(stepStyle.Render("STEP 2: REPUTATION ORACLE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Oracle base URL").
				Validate(required).
				Value(&a.reputationOracle),
			huh.NewInput().
				Title("Requests per second").
				Validate(validateRPS).
				Value(&a.reputationRPS),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Println(stepStyle.Render("STEP 3: SERVING AND STORAGE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Validate(required).
				Value(&a.listen),
			huh.NewSelect[string]().
				Title("Snapshot storage").
				Options(
					huh.NewOption("JSON files", config.BackendFile),
					huh.NewOption("Write-ahead log", config.BackendWAL),
				).
				Value(&a.backend),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Println(stepStyle.Render("STEP 4: REFRESH"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Funds refresh interval").
				Validate(validateDuration).
				Value(&a.fundsInterval),
			huh.NewInput().
				Title("Users refresh interval").
				Validate(validateDuration).
				Value(&a.usersInterval),
			huh.NewInput().
				Title("Snapshot max age").
				Description("Older snapshots are served but flagged stale").
				Validate(validateDuration).
				Value(&a.maxAge),
			huh.NewConfirm().
				Title("Skip the first refresh when a fresh snapshot exists?").
				Value(&a.warmStart),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COLONY FEED CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Colony: %s\nRPC: %s\nOracle: %s\nListen: %s\nStorage: %s\nRefresh: funds %s, users %s\n",
		a.colonyAddress, a.rpcEndpoint, a.reputationOracle, a.listen, a.backend, a.fundsInterval, a.usersInterval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	tmp, err := a.configTmp()
	if err != nil {
		return "", err
	}
	if err := tmp.WriteFile(path); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting feed...", path)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return path, nil
}

// configTmp converts the answers and checks they form a loadable config.
func (a answers) configTmp() (config.ConfigTmp, error) {
	rps, err := strconv.ParseFloat(a.reputationRPS, 64)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "requests per second")
	}
	fundsInterval, err := time.ParseDuration(a.fundsInterval)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "funds interval")
	}
	usersInterval, err := time.ParseDuration(a.usersInterval)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "users interval")
	}
	maxAge, err := time.ParseDuration(a.maxAge)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "max age")
	}

	tmp := config.ConfigTmp{
		RPCEndpoint:      strings.TrimSpace(a.rpcEndpoint),
		ColonyAddress:    strings.TrimSpace(a.colonyAddress),
		ReputationOracle: strings.TrimSpace(a.reputationOracle),
		ReputationRPS:    rps,
		Listen:           strings.TrimSpace(a.listen),
		Funds:            config.FeedTmp{Interval: fundsInterval, MaxAge: maxAge},
		Users:            config.FeedTmp{Interval: usersInterval, MaxAge: maxAge},
		Storage:          config.StorageTmp{Backend: a.backend},
		WarmStart:        a.warmStart,
	}

	if _, err := tmp.Build(); err != nil {
		return config.ConfigTmp{}, err
	}

	return tmp, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("must be a 0x-prefixed 20 byte hex address")
	}
	return nil
}

func validateRPS(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if v <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration like 5m or 90s")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
