package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/hatrom/pkg/codec"
	"github.com/ssargent/hatrom/pkg/config"
	"github.com/ssargent/hatrom/pkg/device"
	"github.com/ssargent/hatrom/pkg/inventory"
	"github.com/ssargent/hatrom/pkg/logging"
)

const testManifest = `version: 1
vendor:
  vendor_id: 0x414C
  product_id: 0x2024
  product_ver: 2
  vendor: ACME
  product: Sensor HAT
  uuid: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
gpio_bank0:
  flags: 0x0001
  pins: [0, 0, 1, 1]
dt_blob: overlay.dtbo
custom_atoms:
  - type: 0x80
    text: serial=0042
`

// writeManifest writes testManifest and its overlay into dir
func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlay.dtbo"), []byte{0xD0, 0x0D, 0xFE, 0xED}, 0o644))
	path := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))
	return path
}

func createImage(t *testing.T, dir string, withCRC bool) string {
	t.Helper()
	out := filepath.Join(dir, "eeprom.bin")
	_, err := runCreate(&bytes.Buffer{}, writeManifest(t, dir), out, withCRC)
	require.NoError(t, err)
	return out
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "eeprom.bin")

	size, err := runCreate(&bytes.Buffer{}, writeManifest(t, dir), out, true)
	require.NoError(t, err)

	image, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, size, len(image))
	assert.True(t, codec.VerifyCRC(image))

	e, err := codec.Parse(image)
	require.NoError(t, err)
	assert.Equal(t, "ACME", e.VendorInfo.VendorName())
	assert.Equal(t, []byte{0xD0, 0x0D, 0xFE, 0xED}, e.DtBlob)
	assert.Equal(t, uint16(4), e.Header.NumAtoms)
}

func TestCreate_Stdout(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	size, err := runCreate(&stdout, writeManifest(t, dir), "-", false)
	require.NoError(t, err)
	assert.Equal(t, size, stdout.Len())

	_, err = codec.Parse(stdout.Bytes())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "-"))
}

func TestCreate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := runCreate(&bytes.Buffer{}, filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "out.bin"), true)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("dt_blob: nowhere.dtbo\n"), 0o644))
	_, err = runCreate(&bytes.Buffer{}, bad, filepath.Join(dir, "out.bin"), true)
	assert.ErrorContains(t, err, "failed to build image")
	assert.NoFileExists(t, filepath.Join(dir, "out.bin"))
}

func TestShow(t *testing.T) {
	image := createImage(t, t.TempDir(), true)

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runShow(&out, image, "table"))

		s := out.String()
		assert.Contains(t, s, `HAT EEPROM "R-Pi" v1: 4 atoms`)
		assert.Contains(t, s, "ACME (0x414C)")
		assert.Contains(t, s, "Checksum:")
		assert.Contains(t, s, "ok")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runShow(&out, image, "json"))

		var in codec.Inspection
		require.NoError(t, json.Unmarshal(out.Bytes(), &in))
		assert.True(t, in.CRCValid)
		assert.Equal(t, "Sensor HAT", in.Summary.Vendor.Product)
		assert.Equal(t, 4, in.Summary.DtBlobSize)
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runShow(&out, image, "yaml"))
		assert.Contains(t, out.String(), "crc_valid: true")
		assert.Contains(t, out.String(), "uuid: 6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	})

	t.Run("not an image", func(t *testing.T) {
		junk := filepath.Join(t.TempDir(), "junk.bin")
		require.NoError(t, os.WriteFile(junk, bytes.Repeat([]byte{0xFF}, 64), 0o644))
		assert.ErrorIs(t, runShow(&bytes.Buffer{}, junk, "table"), codec.ErrBadSignature)
	})
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()

	withCRC := createImage(t, dir, true)
	var out bytes.Buffer
	require.NoError(t, runVerify(&out, withCRC, "table"))
	assert.Contains(t, out.String(), "checksum ok")

	image, err := os.ReadFile(withCRC)
	require.NoError(t, err)
	image[20] ^= 0x01
	corrupt := filepath.Join(dir, "corrupt.bin")
	require.NoError(t, os.WriteFile(corrupt, image, 0o644))
	out.Reset()
	assert.ErrorIs(t, runVerify(&out, corrupt, "json"), errChecksumMismatch)
	assert.Contains(t, out.String(), `"crc_valid": false`)

	plainDir := t.TempDir()
	plain := createImage(t, plainDir, false)
	assert.ErrorIs(t, runVerify(&bytes.Buffer{}, plain, "table"), errNoChecksum)
}

func newMemoryDevice(size int) (*device.MemoryEEPROM, *device.I2CEEPROM) {
	mem := device.NewMemoryEEPROM(size, device.DefaultPageSize)
	return mem, device.NewI2CEEPROM(mem, device.WithWriteDelay(0), device.WithReadSize(size))
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	image, err := os.ReadFile(createImage(t, dir, true))
	require.NoError(t, err)

	mem, ee := newMemoryDevice(4096)
	ctx := context.Background()

	require.NoError(t, runWrite(ctx, logging.Discard(), ee, image, true, false))
	assert.Equal(t, image, mem.Bytes()[:len(image)])

	dump := filepath.Join(dir, "dump.bin")
	var out bytes.Buffer
	require.NoError(t, runRead(ctx, &out, logging.Discard(), ee, dump, "table"))

	assert.Contains(t, out.String(), "Read 4096 bytes to "+dump)
	assert.Contains(t, out.String(), "ACME (0x414C)")
	assert.Contains(t, out.String(), "ok")

	dumped, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Len(t, dumped, 4096)
	assert.Equal(t, image, dumped[:len(image)])
}

func TestRead_ToStdout(t *testing.T) {
	mem, ee := newMemoryDevice(256)
	var out bytes.Buffer

	require.NoError(t, runRead(context.Background(), &out, logging.Discard(), ee, "-", "table"))
	assert.Equal(t, mem.Bytes(), out.Bytes())
}

func TestRead_BlankEEPROM(t *testing.T) {
	_, ee := newMemoryDevice(512)
	dump := filepath.Join(t.TempDir(), "blank.bin")
	var out bytes.Buffer

	require.NoError(t, runRead(context.Background(), &out, logging.Discard(), ee, dump, "json"))
	assert.Contains(t, out.String(), "not a HAT image")
	assert.FileExists(t, dump)
}

func TestWrite_RefusesBadImages(t *testing.T) {
	image, err := os.ReadFile(createImage(t, t.TempDir(), true))
	require.NoError(t, err)
	ctx := context.Background()

	mem, ee := newMemoryDevice(1024)
	err = runWrite(ctx, logging.Discard(), ee, []byte("not an image at all"), true, false)
	assert.ErrorIs(t, err, codec.ErrBadSignature)
	assert.Equal(t, 0, mem.PageWrites())

	corrupt := append([]byte(nil), image...)
	corrupt[len(corrupt)-1] ^= 0xFF
	err = runWrite(ctx, logging.Discard(), ee, corrupt, true, false)
	assert.ErrorIs(t, err, errChecksumMismatch)
	assert.Equal(t, 0, mem.PageWrites())

	require.NoError(t, runWrite(ctx, logging.Discard(), ee, corrupt, true, true))
	assert.Equal(t, corrupt, mem.Bytes()[:len(corrupt)])
}

// stuckDevice accepts writes but always reads back erased cells
type stuckDevice struct{ size int }

func (d *stuckDevice) ReadImage(ctx context.Context) ([]byte, error) {
	return bytes.Repeat([]byte{0xFF}, d.size), nil
}

func (d *stuckDevice) WriteImage(ctx context.Context, data []byte) error {
	return nil
}

func (d *stuckDevice) Close() error {
	return nil
}

func TestWrite_VerifyMismatch(t *testing.T) {
	image, err := os.ReadFile(createImage(t, t.TempDir(), true))
	require.NoError(t, err)

	dev := &stuckDevice{size: 1024}
	assert.ErrorIs(t, runWrite(context.Background(), logging.Discard(), dev, image, true, false), errVerifyMismatch)
	assert.NoError(t, runWrite(context.Background(), logging.Discard(), dev, image, false, false))
}

func TestDeviceConfig(t *testing.T) {
	base := config.DefaultConfig().Device

	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "test"}
		addDeviceFlags(c)
		c.Flags().Int("size", 0, "")
		return c
	}

	t.Run("defaults", func(t *testing.T) {
		got, err := deviceConfig(newCmd(), base)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("overrides", func(t *testing.T) {
		c := newCmd()
		require.NoError(t, c.Flags().Set("bus", "/dev/i2c-9"))
		require.NoError(t, c.Flags().Set("addr", "0x51"))
		require.NoError(t, c.Flags().Set("size", "4096"))

		got, err := deviceConfig(c, base)
		require.NoError(t, err)
		assert.Equal(t, "/dev/i2c-9", got.Bus)
		assert.Equal(t, uint16(0x51), got.Address)
		assert.Equal(t, 4096, got.ReadSize)
		assert.Equal(t, base.PageSize, got.PageSize)
	})

	for _, bad := range [][2]string{{"addr", "0x80"}, {"addr", "fifty"}, {"size", "0"}, {"size", "70000"}} {
		t.Run("invalid "+bad[0]+"="+bad[1], func(t *testing.T) {
			c := newCmd()
			require.NoError(t, c.Flags().Set(bad[0], bad[1]))
			_, err := deviceConfig(c, base)
			assert.Error(t, err)
		})
	}
}

func TestResolveServerConfig(t *testing.T) {
	got, err := resolveServerConfig(config.Server{Port: 9000, Bind: "0.0.0.0", APIKey: "auto"})
	require.NoError(t, err)
	assert.Equal(t, 9000, got.Port)
	assert.Equal(t, "0.0.0.0", got.Bind)
	assert.Len(t, got.APIKey, 64)

	got, err = resolveServerConfig(config.Server{APIKey: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.APIKey)

	got, err = resolveServerConfig(config.Server{})
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hatrom", "config.yaml")
	var out bytes.Buffer

	require.NoError(t, runConfigInit(&out, path, "/srv/hatrom", false, true))
	assert.Contains(t, out.String(), "Configuration created at "+path)
	assert.Contains(t, out.String(), "API key: ")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/hatrom", cfg.Inventory.DataDir)
	assert.Len(t, cfg.Server.APIKey, 64)

	assert.ErrorContains(t, runConfigInit(&out, path, "", false, false), "already exists")
	require.NoError(t, runConfigInit(&out, path, "", true, false))

	again, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Server.APIKey, again.Server.APIKey)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "auto", maskKey("auto"))
	assert.Equal(t, "abcd...wxyz", maskKey("abcdefghijklmnopqrstuvwxyz"))
}

func TestOutputEntries_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputEntries(&out, "table", nil))
	assert.Equal(t, "No images found\n", out.String())

	out.Reset()
	require.NoError(t, outputEntries(&out, "json", nil))
	assert.Equal(t, "[]\n", out.String())
}

// execute runs the root command with args against an isolated config
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInventoryCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Inventory.DataDir = filepath.Join(dir, "inventory")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	image := createImage(t, dir, true)
	base := []string{"--config", cfgPath, "--format", "json"}

	out, err := execute(t, append(base, "inventory", "add", image, "--label", "rev-a")...)
	require.NoError(t, err)
	var added inventory.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.Equal(t, "rev-a", added.Label)
	assert.True(t, added.CRCValid)

	out, err = execute(t, append(base, "inventory", "list")...)
	require.NoError(t, err)
	var listed []inventory.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, added.ID, listed[0].ID)

	out, err = execute(t, append(base, "inventory", "list", "--uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")...)
	require.NoError(t, err)
	assert.Contains(t, out, added.ID)

	saved := filepath.Join(dir, "saved.bin")
	out, err = execute(t, append(base, "inventory", "get", added.ID, "-o", saved)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Wrote "))
	original, err := os.ReadFile(image)
	require.NoError(t, err)
	copied, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	_, err = execute(t, append(base, "inventory", "rm", added.ID)...)
	require.NoError(t, err)

	_, err = execute(t, append(base, "inventory", "rm", added.ID)...)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}
