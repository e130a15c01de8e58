package layer

import (
	"errors"
	"testing"

	"tilemap/pkg/geom"
)

func TestRectangularIndexing(t *testing.T) {
	l := New[int](geom.Rectangular, geom.Size{Width: 4, Height: 3})
	l.Set(geom.CPos{X: 2, Y: 1}, 42)

	if got := l.Values()[1*4+2]; got != 42 {
		t.Errorf("backing value = %d, want 42", got)
	}
	if got := l.AtMap(geom.MPos{U: 2, V: 1}); got != 42 {
		t.Errorf("AtMap = %d, want 42", got)
	}
}

func TestIsometricIndexing(t *testing.T) {
	l := New[int](geom.RectangularIsometric, geom.Size{Width: 4, Height: 6})

	// CPos(3,0) -> u = 3/2 = 1, v = 3
	c := geom.CPos{X: 3, Y: 0}
	l.Set(c, 7)
	if got := l.Values()[3*4+1]; got != 7 {
		t.Errorf("backing value = %d, want 7", got)
	}
	if got := l.At(c); got != 7 {
		t.Errorf("At = %d, want 7", got)
	}

	// Mirrored coordinate aliases the same slot but is rejected by Contains.
	if l.Contains(geom.CPos{X: 0, Y: 3}) {
		t.Error("X < Y must not be contained in an isometric layer")
	}
	if got := l.At(geom.CPos{X: 0, Y: 3}); got != 0 {
		t.Errorf("At(mirrored) = %d, want zero value", got)
	}
}

func TestOutOfRangeIsHarmless(t *testing.T) {
	l := New[byte](geom.Rectangular, geom.Size{Width: 2, Height: 2})
	l.Set(geom.CPos{X: 5, Y: 5}, 1)
	l.SetMap(geom.MPos{U: -1, V: 0}, 1)

	if _, ok := l.TryGet(geom.CPos{X: 2, Y: 0}); ok {
		t.Error("TryGet outside the layer should report false")
	}
	for i, v := range l.Values() {
		if v != 0 {
			t.Errorf("entry %d = %d after out-of-range writes", i, v)
		}
	}
}

func TestWatchOrder(t *testing.T) {
	l := New[int](geom.Rectangular, geom.Size{Width: 2, Height: 2})

	var calls []string
	l.Watch(func(geom.CPos) { calls = append(calls, "observer1") })
	l.WatchFirst(func(geom.CPos) { calls = append(calls, "owner1") })
	l.Watch(func(geom.CPos) { calls = append(calls, "observer2") })
	l.WatchFirst(func(geom.CPos) { calls = append(calls, "owner2") })

	var seen geom.CPos
	l.Watch(func(c geom.CPos) { seen = c })
	l.Set(geom.CPos{X: 1, Y: 1}, 3)

	want := []string{"owner1", "owner2", "observer1", "observer2"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
	if seen != (geom.CPos{X: 1, Y: 1}) {
		t.Errorf("watcher saw %v", seen)
	}
}

func TestBulkOperationsRefuseWatchedLayers(t *testing.T) {
	l := New[int](geom.Rectangular, geom.Size{Width: 2, Height: 2})
	other := New[int](geom.Rectangular, geom.Size{Width: 2, Height: 2})
	l.Watch(func(geom.CPos) {})

	if err := l.Clear(1); !errors.Is(err, ErrWatched) {
		t.Errorf("Clear err = %v, want ErrWatched", err)
	}
	if err := l.CopyFrom(other); !errors.Is(err, ErrWatched) {
		t.Errorf("CopyFrom err = %v, want ErrWatched", err)
	}
}

func TestCopyFrom(t *testing.T) {
	src := New[int](geom.Rectangular, geom.Size{Width: 3, Height: 2})
	if err := src.Clear(9); err != nil {
		t.Fatal(err)
	}

	dst := New[int](geom.Rectangular, geom.Size{Width: 3, Height: 2})
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if got := dst.At(geom.CPos{X: 2, Y: 1}); got != 9 {
		t.Errorf("copied value = %d, want 9", got)
	}

	wrongShape := New[int](geom.RectangularIsometric, geom.Size{Width: 3, Height: 2})
	if err := dst.CopyFrom(wrongShape); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("err = %v, want ErrSizeMismatch", err)
	}
	wrongSize := New[int](geom.Rectangular, geom.Size{Width: 2, Height: 2})
	if err := dst.CopyFrom(wrongSize); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestResizePreservesOverlap(t *testing.T) {
	sizes := []geom.Size{
		{Width: 2, Height: 2},
		{Width: 6, Height: 3},
		{Width: 3, Height: 7},
		{Width: 8, Height: 8},
	}
	old := New[int](geom.RectangularIsometric, geom.Size{Width: 5, Height: 5})
	for v := 0; v < 5; v++ {
		for u := 0; u < 5; u++ {
			old.SetMap(geom.MPos{U: u, V: v}, v*10+u)
		}
	}

	for _, size := range sizes {
		t.Run(size.String(), func(t *testing.T) {
			resized := Resize(old, size, -1)
			if resized.Size() != size {
				t.Fatalf("size = %v, want %v", resized.Size(), size)
			}
			if resized.GridType() != old.GridType() {
				t.Errorf("grid type changed")
			}
			for v := 0; v < size.Height; v++ {
				for u := 0; u < size.Width; u++ {
					uv := geom.MPos{U: u, V: v}
					want := -1
					if u < 5 && v < 5 {
						want = v*10 + u
					}
					if got := resized.AtMap(uv); got != want {
						t.Errorf("%v = %d, want %d", uv, got, want)
					}
				}
			}
		})
	}
}

func TestClampToLayer(t *testing.T) {
	l := New[int](geom.Rectangular, geom.Size{Width: 4, Height: 3})
	if got := l.Clamp(geom.MPos{U: 10, V: -2}); got != (geom.MPos{U: 3, V: 0}) {
		t.Errorf("Clamp = %v, want 3,0", got)
	}
}

func TestProjectedLayer(t *testing.T) {
	l := NewProjected[byte](geom.RectangularIsometric, geom.Size{Width: 3, Height: 3})
	l.Set(geom.PPos{U: 1, V: 2}, 5)
	l.Set(geom.PPos{U: 3, V: 0}, 9)

	if got := l.At(geom.PPos{U: 1, V: 2}); got != 5 {
		t.Errorf("At = %d, want 5", got)
	}
	if l.Contains(geom.PPos{U: 3, V: 0}) {
		t.Error("U=3 is outside a width-3 layer")
	}
	l.Clear(1)
	if got := l.At(geom.PPos{U: 1, V: 2}); got != 1 {
		t.Errorf("after Clear = %d, want 1", got)
	}
}
