package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cfgpkg "opkit/internal/config"
	"opkit/internal/diag"
	"opkit/internal/session"
	"opkit/pkg/contract"
	"opkit/pkg/gateway"
	"opkit/pkg/textstate"
)

// 可替换的标准输出端（测试使用）。
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// 退出码：0 成功；1 运行期失败；3 配置/参数错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// opkit [flags] [input]
// 位置参数为单个输入源（文件或 "-" 表示 STDIN）；--op 按顺序执行。
func main() {
	os.Exit(run())
}

// opList 收集 --op（可重复，亦可逗号分隔）。
type opList []string

var knownOps = map[string]bool{
	"replace-commas": true,
	"add-quotes":     true,
	"remove-quotes":  true,
	"encrypt":        true,
	"decrypt":        true,
	"convert":        true,
	"upload":         true,
}

func (o *opList) String() string { return strings.Join(*o, ",") }

func (o *opList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !knownOps[s] {
			return fmt.Errorf("unknown op %q", s)
		}
		*o = append(*o, s)
	}
	return nil
}

// cliFlags 汇总命令行参数。
type cliFlags struct {
	config       string
	concurrency  int
	batchSize    int
	logLevel     string
	initDir      string
	status       bool
	ops          opList
	side         string
	profile      string
	prefix       string
	showSettings bool
	invoke       string
	payload      string
	page         string
	out          string
	accessID     string
	accessKey    string
	channel      string
}

func run() int {
	start := time.Now()
	corrID := diag.NewCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = cfgpkg.LoadDotEnv(".env")
	// 配置解析前仅输出到 stderr；合并配置后按最终 level/dir 重建
	logger := diag.NewLoggerAt("", corrID, "info")

	var f cliFlags
	flag.StringVar(&f.config, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	flag.IntVar(&f.concurrency, "concurrency", 0, "批量编解码并发度（覆盖配置）")
	flag.IntVar(&f.batchSize, "batch-size", 0, "每批条目数（覆盖配置）")
	flag.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	flag.StringVar(&f.initDir, "init-config", "", "在指定目录生成 config.json 与 .env 模板（config.json 已存在时报错）；不带值时为当前目录")
	flag.BoolVar(&f.status, "status", true, "终端状态提示（stderr）")
	flag.Var(&f.ops, "op", "按顺序执行的动作：replace-commas,add-quotes,remove-quotes,encrypt,decrypt,convert,upload")
	flag.StringVar(&f.side, "side", "input", "引号动作作用的一侧：input|output")
	flag.StringVar(&f.profile, "profile", "", "设置加密配置：通用|华为（general|huawei）")
	flag.StringVar(&f.prefix, "prefix", "", "设置华为前缀开关：true|false")
	flag.BoolVar(&f.showSettings, "show-settings", false, "打印当前加密配置与华为前缀开关")
	flag.StringVar(&f.invoke, "invoke", "", "直接调用后端操作（线上名称），结果以 JSON 打印")
	flag.StringVar(&f.payload, "payload", "", "--invoke 的 JSON 载荷")
	flag.StringVar(&f.page, "page", "1", "打印哪一页：页码|first|last|all（all 逐页打印全部内容）")
	flag.StringVar(&f.out, "out", "", "将完整结果写入该文件")
	flag.StringVar(&f.accessID, "access-id", "", "OSS Access ID（缺省读取 OPKIT_OSS_ACCESS_ID）")
	flag.StringVar(&f.accessKey, "access-key", "", "OSS Access Key（缺省读取 OPKIT_OSS_ACCESS_KEY）")
	flag.StringVar(&f.channel, "channel", "", "上传渠道：vivo|oppo|huawei|xiaomi")
	normalizeInitArg()
	flag.Parse()
	args := flag.Args()

	// --init-config: 生成模板并退出
	if dir := strings.TrimSpace(f.initDir); dir != "" {
		if err := initConfig(dir); err != nil {
			fprintf(stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init config", &start)
			return exitConfig
		}
		return exitOK
	}

	// 参数校验（不触碰后端）
	if len(args) > 1 {
		fprintf(stderr, "参数错误: 仅支持一个输入源，收到 %d 个\n", len(args))
		return exitConfig
	}
	side, err := textstate.ParseSide(f.side)
	if err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	page, err := parsePage(f.page)
	if err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	var prefix *bool
	if s := strings.TrimSpace(f.prefix); s != "" {
		on, err := strconv.ParseBool(s)
		if err != nil {
			fprintf(stderr, "参数错误: --prefix 需为 true|false: %q\n", s)
			return exitConfig
		}
		prefix = &on
	}
	var invokeOp gateway.Op
	if f.invoke != "" {
		invokeOp, err = gateway.Decode(f.invoke, json.RawMessage(f.payload))
		if err != nil {
			fprintf(stderr, "参数错误: %v（可用操作: %s）\n", err, strings.Join(gateway.Names(), ", "))
			return exitConfig
		}
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "load", &start)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("config", string(diag.Classify(err)), "validate", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别/目录重建 logger
	logDir := cfg.Logging.Dir
	if logDir == "-" {
		logDir = ""
	}
	rot, _ := cfg.Logging.Rotate() // Validate 已校验
	logger = diag.NewLoggerRotating(logDir, corrID, cfg.Logging.Level, rot)
	defer logger.Close()

	asm, err := cfgpkg.Assemble(cfg, logger)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "assemble", &start)
		return exitConfig
	}
	defer asm.Close()

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"concurrency":    strconv.Itoa(cfg.Concurrency),
		"batch_size":     strconv.Itoa(cfg.BatchSize),
		"reader":         cfg.Components.Reader,
		"writer":         cfg.Components.Writer,
		"text_processor": cfg.Components.TextProcessor,
		"codec":          cfg.Components.Codec,
		"settings":       cfg.Components.Settings,
		"uploader":       cfg.Components.Uploader,
		"limits_rpm":     strconv.Itoa(cfg.Limits.RPM),
	})

	term := diag.NewTerminal(stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.Concurrency, cfg.Components.Codec+"/"+cfg.Components.Uploader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("cli", "run")
	var runErr error
	if invokeOp != nil {
		runErr = invokeRaw(ctx, asm.Backend, invokeOp)
	} else {
		runErr = execute(ctx, f, side, page, prefix, args, asm, logger)
	}
	dumpMetrics(logger)
	if runErr != nil {
		diag.Record(logger, "cli", "first error", "", runErr)
		if !errors.Is(runErr, context.Canceled) {
			fprintf(stderr, "运行失败: %v\n", runErr)
		}
		term.RunFinish(false, time.Since(start))
		return exitRuntime
	}
	t.Finish("run", int64(len(f.ops)))
	diag.IncOp("cli", "finish", "success")
	term.RunFinish(true, time.Since(start))
	return exitOK
}

// loadConfig: Defaults → JSON（文件或 OPKIT_CONFIG_JSON）→ ENV → CLI。
func loadConfig(f cliFlags) (cfgpkg.Config, error) {
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	path := f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	cfg := cfgpkg.Defaults()
	if path != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(path, cfgJSON)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI := cfgpkg.Config{
		Concurrency: f.concurrency,
		BatchSize:   f.batchSize,
		Logging:     cfgpkg.Logging{Level: f.logLevel},
		Limits:      cfgpkg.Limits{RPM: -1, BytesPerMinute: -1, MaxBytesPerReq: -1},
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

// invokeRaw 直接调用后端并以线上 JSON 形状打印结果。
func invokeRaw(ctx context.Context, g gateway.Gateway, op gateway.Op) error {
	r, err := g.Invoke(ctx, op)
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = stdout.Write(append(b, '\n'))
	return err
}

// execute: 设置 → 读入 → 动作序列 → 打印当前页 → 写出。
func execute(ctx context.Context, f cliFlags, side textstate.Side, page pageSpec, prefix *bool, args []string, asm *cfgpkg.Assembly, logger *diag.Logger) error {
	sess := session.New(asm.Backend)
	if f.profile != "" {
		if err := sess.SetCryptoProfile(ctx, f.profile); err != nil {
			return err
		}
	}
	if prefix != nil {
		if err := sess.SetPrefixFlag(ctx, *prefix); err != nil {
			return err
		}
	}
	if f.showSettings {
		if err := printSettings(ctx, sess); err != nil {
			return err
		}
	}

	if len(args) == 1 {
		text, err := readInput(ctx, asm.Reader, args[0])
		if err != nil {
			return err
		}
		if !sess.Paste(text) {
			diag.GetTerminal().Note("输入为空")
		}
	}

	for _, op := range f.ops {
		if err := applyOp(ctx, sess, op, side, f); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(args) == 0 && len(f.ops) == 0 {
		return nil
	}

	st := sess.State()
	viewSide, label := textstate.Output, "输出"
	if st.Output.Empty() {
		viewSide, label = textstate.Input, "输入"
	}
	view := st.Side(viewSide)
	if page.all {
		for p, content := range view.Pages() {
			printPage(label, content, textstate.PageLabel(p, view.PageInfo.TotalPages))
		}
	} else {
		switch {
		case page.first:
			sess.First(viewSide)
		case page.last:
			sess.Last(viewSide)
		case page.n > 1 && !sess.GoTo(viewSide, page.n):
			diag.GetTerminal().Note(fmt.Sprintf("页码 %d 超出范围（共 %d 页），显示第 1 页", page.n, view.PageInfo.TotalPages))
		}
		printPage(label, view.CurrentContent, view.Label())
	}

	if f.out != "" {
		w, err := asm.Writer(filepath.Dir(f.out))
		if err != nil {
			return err
		}
		id := contract.NormalizeArtifactID(filepath.Base(f.out))
		if err := w.Write(ctx, id, strings.NewReader(view.FullContent)); err != nil {
			return err
		}
		logger.Debug("cli", "written", map[string]string{"path": f.out, "bytes": strconv.Itoa(len(view.FullContent))})
	}
	return nil
}

// pageSpec 为解析后的 --page：n 为页码，其余为关键字。
type pageSpec struct {
	n                int
	first, last, all bool
}

func parsePage(v string) (pageSpec, error) {
	switch s := strings.ToLower(strings.TrimSpace(v)); s {
	case "", "first":
		return pageSpec{first: true}, nil
	case "last":
		return pageSpec{last: true}, nil
	case "all":
		return pageSpec{all: true}, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return pageSpec{}, fmt.Errorf("--page 需为正整数或 first|last|all: %q", v)
		}
		return pageSpec{n: n}, nil
	}
}

// printPage 内容写 stdout，页码标签（多页时才有）写 stderr。
func printPage(side, content, pageLabel string) {
	if content != "" {
		fprintf(stdout, "%s\n", content)
	}
	if pageLabel != "" {
		fprintf(stderr, "%s %s\n", side, pageLabel)
	}
}

func applyOp(ctx context.Context, sess *session.Session, op string, side textstate.Side, f cliFlags) error {
	switch op {
	case "replace-commas":
		return sess.ReplaceCommas(ctx)
	case "add-quotes":
		return sess.AddQuotes(ctx, side)
	case "remove-quotes":
		return sess.RemoveQuotes(ctx, side)
	case "encrypt":
		return sess.Encrypt(ctx)
	case "decrypt":
		return sess.Decrypt(ctx)
	case "convert":
		return sess.Convert(ctx)
	case "upload":
		id := firstNonEmpty(f.accessID, os.Getenv(cfgpkg.EnvPrefix+"OSS_ACCESS_ID"))
		key := firstNonEmpty(f.accessKey, os.Getenv(cfgpkg.EnvPrefix+"OSS_ACCESS_KEY"))
		loc, err := sess.Upload(ctx, id, key, f.channel)
		if err != nil {
			return err
		}
		fprintf(stderr, "上传成功: %s\n", loc)
		return nil
	default:
		return fmt.Errorf("%w: op %q", contract.ErrInvalidInput, op)
	}
}

func printSettings(ctx context.Context, sess *session.Session) error {
	p, err := sess.CryptoProfile(ctx)
	if err != nil {
		return err
	}
	on, err := sess.PrefixFlag(ctx)
	if err != nil {
		return err
	}
	fprintf(stdout, "加密配置: %s\n华为前缀: %t\n", p, on)
	return nil
}

func readInput(ctx context.Context, r contract.Reader, src string) (string, error) {
	rc, err := r.Open(ctx, src)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// dumpMetrics 在 debug 级别输出进程内计数快照。
func dumpMetrics(logger *diag.Logger) {
	b, err := json.Marshal(diag.Snapshot())
	if err != nil {
		return
	}
	logger.Debug("metrics", "snapshot", map[string]string{"metrics": string(b)})
}

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fprintf(stderr, "有效配置:\n%s\n", b)
	return nil
}

// initConfig 在 dir 下生成 config.json 与 .env；均不覆盖已有文件，config.json 已存在时报错。
func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		return err
	}
	if err := writeNew(filepath.Join(dir, ".env"), []byte(cfgpkg.DotEnvTemplate())); err != nil && !os.IsExist(err) {
		fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = stdout.Write(b)
		return err
	}
	return writeNew(path, b)
}

// writeNew 仅在文件不存在时创建并写入。
func writeNew(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// normalizeInitArg: 允许 --init-config 不带值（等价于 --init-config .）。
//
//	--init-config                => --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}
