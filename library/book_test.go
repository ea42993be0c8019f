package library

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func testBook() *Book {
	return &Book{
		ID:       "li_1",
		Title:    "The Long Way",
		Duration: 90 * time.Second,
		Tracks: []Track{
			{Index: 0, StartOffset: 0, Duration: 30 * time.Second},
			{Index: 1, StartOffset: 30 * time.Second, Duration: 20 * time.Second},
			{Index: 2, StartOffset: 50 * time.Second, Duration: 40 * time.Second},
		},
		Chapters: []Chapter{
			{Title: "One", Start: 0, End: 45 * time.Second},
			{Title: "Two", Start: 45 * time.Second, End: 90 * time.Second},
		},
	}
}

func TestTrackForPosition(t *testing.T) {
	Convey("Given a book with three tracks", t, func() {
		book := testBook()

		Convey("A position inside the first track maps to it", func() {
			index, offset := book.TrackForPosition(10 * time.Second)
			So(index, ShouldEqual, 0)
			So(offset, ShouldEqual, 10*time.Second)
		})

		Convey("A position on a track boundary maps to the next track", func() {
			index, offset := book.TrackForPosition(30 * time.Second)
			So(index, ShouldEqual, 1)
			So(offset, ShouldEqual, 0)
		})

		Convey("A position inside a later track is made track-local", func() {
			index, offset := book.TrackForPosition(65 * time.Second)
			So(index, ShouldEqual, 2)
			So(offset, ShouldEqual, 15*time.Second)
		})

		Convey("A position past the book lands at the end of the last track", func() {
			index, offset := book.TrackForPosition(5 * time.Minute)
			So(index, ShouldEqual, 2)
			So(offset, ShouldEqual, 40*time.Second)
		})

		Convey("A negative position clamps to the very beginning", func() {
			index, offset := book.TrackForPosition(-3 * time.Second)
			So(index, ShouldEqual, 0)
			So(offset, ShouldEqual, 0)
		})
	})

	Convey("Given a book without tracks", t, func() {
		book := &Book{}

		Convey("Any position maps to the zero point", func() {
			index, offset := book.TrackForPosition(10 * time.Second)
			So(index, ShouldEqual, 0)
			So(offset, ShouldEqual, 0)
		})
	})
}

func TestGlobalPosition(t *testing.T) {
	Convey("Given a book with three tracks", t, func() {
		book := testBook()

		Convey("A track-local offset maps back onto the global timeline", func() {
			So(book.GlobalPosition(1, 5*time.Second), ShouldEqual, 35*time.Second)
		})

		Convey("Round-tripping through TrackForPosition is lossless", func() {
			for _, global := range []time.Duration{0, 12 * time.Second, 30 * time.Second, 77 * time.Second} {
				index, offset := book.TrackForPosition(global)
				So(book.GlobalPosition(index, offset), ShouldEqual, global)
			}
		})

		Convey("An out-of-range track index returns the offset unchanged", func() {
			So(book.GlobalPosition(9, 5*time.Second), ShouldEqual, 5*time.Second)
		})
	})
}

func TestChapterAt(t *testing.T) {
	Convey("Given a book with two chapters", t, func() {
		book := testBook()

		Convey("A position inside a chapter resolves its title", func() {
			ch, ok := book.ChapterAt(50 * time.Second)
			So(ok, ShouldBeTrue)
			So(ch.Title, ShouldEqual, "Two")
		})

		Convey("Chapter starts are inclusive, ends are exclusive", func() {
			ch, ok := book.ChapterAt(45 * time.Second)
			So(ok, ShouldBeTrue)
			So(ch.Title, ShouldEqual, "Two")
		})

		Convey("A position past every chapter resolves nothing", func() {
			_, ok := book.ChapterAt(2 * time.Hour)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSetResume(t *testing.T) {
	Convey("Given a book with three tracks", t, func() {
		book := testBook()

		Convey("A global resume point in seconds becomes track-local progress", func() {
			book.SetResume(42)
			So(book.Resume.TrackIndex, ShouldEqual, 1)
			So(book.Resume.Offset, ShouldEqual, 12*time.Second)
		})
	})
}
